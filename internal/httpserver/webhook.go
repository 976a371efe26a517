package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/observability"
	"chatcampaigns/internal/util"
)

type InboundQueue interface {
	EnqueueInbound(ctx context.Context, ev domain.InboundMessage) error
}

// Webhook receives inbound message callbacks from the chat gateway and
// bridges them onto the FIFO queue. It does no matching or storage itself.
type Webhook struct {
	Queue InboundQueue

	// Token is the shared secret the gateway sends in X-Webhook-Token.
	Token string

	IDGen func() string
}

func (wh *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/webhooks/gateway/messages", wh.handleInbound).Methods(http.MethodPost)
}

type inboundPayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	FromSelf   bool   `json:"fromSelf"`
	GroupChat  bool   `json:"groupChat"`
}

func (wh *Webhook) handleInbound(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Webhook-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(wh.Token)) != 1 {
		http.Error(w, ErrInvalidToken, http.StatusUnauthorized)
		return
	}

	var p inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if p.SenderID == "" {
		http.Error(w, domain.ErrMissingFields.Error(), http.StatusBadRequest)
		return
	}

	idGen := wh.IDGen
	if idGen == nil {
		idGen = util.NewEventID
	}
	ev := domain.InboundMessage{
		EventID:    idGen(),
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Text:       p.Text,
		FromSelf:   p.FromSelf,
		GroupChat:  p.GroupChat,
		ReceivedAt: util.NowUTC(),
	}

	if err := wh.Queue.EnqueueInbound(r.Context(), ev); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		slog.Error("enqueue inbound failed", "err", err, "sender_id", p.SenderID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	observability.Enqueues.WithLabelValues("ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"eventId": ev.EventID})
}
