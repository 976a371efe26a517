// mock-gateway is a local-dev stand-in for the chat gateway: it accepts
// outbound sends (optionally failing a configurable fraction) and can
// simulate inbound traffic by posting messages to the webhook service.
package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"

	"chatcampaigns/internal/logging"
)

type config struct {
	Port        string  `envconfig:"PORT" default:"8081"`
	APIKey      string  `envconfig:"MOCK_API_KEY" default:"mock_key"`
	SuccessRate float64 `envconfig:"MOCK_SUCCESS_RATE" default:"0.95"`
	DelayMs     int     `envconfig:"MOCK_DELAY_MS" default:"0"`

	// When set, POST /v1/simulate/inbound forwards the payload here with
	// the shared token attached.
	WebhookURL   string `envconfig:"MOCK_WEBHOOK_URL" default:""`
	WebhookToken string `envconfig:"MOCK_WEBHOOK_TOKEN" default:""`
}

type server struct {
	cfg  config
	http *http.Client
	seq  atomic.Int64
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	logging.Init("mock-gateway", "text")

	s := &server{cfg: cfg, http: &http.Client{Timeout: 5 * time.Second}}

	r := mux.NewRouter()
	r.HandleFunc("/v1/sessions/{id}/messages", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/simulate/inbound", s.handleSimulateInbound).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	slog.Info("mock gateway listening", "port", cfg.Port, "success_rate", cfg.SuccessRate)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("mock gateway failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.cfg.APIKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "rejected", Error: "bad request"})
		return
	}

	if s.cfg.DelayMs > 0 {
		time.Sleep(time.Duration(s.cfg.DelayMs) * time.Millisecond)
	}

	if rand.Float64() >= s.cfg.SuccessRate {
		slog.Info("mock send failed", "session", mux.Vars(r)["id"], "to", req.To)
		writeJSON(w, http.StatusBadGateway, sendResponse{Status: "failed", Error: "simulated failure"})
		return
	}

	id := "mock_" + strconv.FormatInt(s.seq.Add(1), 10)
	slog.Info("mock send ok", "session", mux.Vars(r)["id"], "to", req.To, "message_id", id)
	writeJSON(w, http.StatusOK, sendResponse{MessageID: id, Status: "sent"})
}

// handleSimulateInbound relays an inbound-message payload to the real
// webhook service, the way the gateway would on a user message.
func (s *server) handleSimulateInbound(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookURL == "" {
		http.Error(w, "MOCK_WEBHOOK_URL not configured", http.StatusNotImplemented)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", s.cfg.WebhookToken)

	resp, err := s.http.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	w.WriteHeader(resp.StatusCode)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
