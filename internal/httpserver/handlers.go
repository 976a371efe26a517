package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/store"
	"chatcampaigns/internal/util"
)

// AdminStore is the slice of the store the admin API needs.
type AdminStore interface {
	CreateCampaign(ctx context.Context, in store.CampaignInsert) (int64, error)
	GetCampaign(ctx context.Context, id int64) (domain.Campaign, bool, error)
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
	SetCampaignStatus(ctx context.Context, id int64, status string, now time.Time) error
	CampaignTemplates(ctx context.Context, campaignID int64) ([]string, error)
	GetConversation(ctx context.Context, id int64) (domain.Conversation, bool, error)
	UserConversationStats(ctx context.Context, userID string) (domain.UserStats, error)
}

type API struct {
	Store AdminStore
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns", a.handleListCampaigns).Methods(http.MethodGet)
	r.HandleFunc("/v1/campaigns/{id}", a.handleGetCampaign).Methods(http.MethodGet)
	r.HandleFunc("/v1/campaigns/{id}/status", a.handleSetCampaignStatus).Methods(http.MethodPut)
	r.HandleFunc("/v1/conversations/{id}", a.handleGetConversation).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/stats", a.handleUserStats).Methods(http.MethodGet)
}

type createCampaignRequest struct {
	Name      string          `json:"name"`
	Priority  int             `json:"priority"`
	Rules     json.RawMessage `json:"rules"`
	Templates []string        `json:"templates"`
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, domain.ErrMissingFields.Error(), http.StatusBadRequest)
		return
	}

	id, err := a.Store.CreateCampaign(r.Context(), store.CampaignInsert{
		Name:      req.Name,
		Priority:  req.Priority,
		Rules:     req.Rules,
		Templates: req.Templates,
		Now:       util.NowUTC(),
	})
	if err != nil {
		slog.Error("create campaign failed", "err", err, "name", req.Name)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (a *API) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := a.Store.ListCampaigns(r.Context())
	if err != nil {
		slog.Error("list campaigns failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(campaigns)
}

func (a *API) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, found, err := a.Store.GetCampaign(r.Context(), id)
	if err != nil {
		slog.Error("get campaign failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}

	templates, err := a.Store.CampaignTemplates(r.Context(), id)
	if err != nil {
		slog.Error("get campaign templates failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		domain.Campaign
		Templates []string `json:"templates"`
	}{c, templates})
}

func (a *API) handleSetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	if err := a.Store.SetCampaignStatus(r.Context(), id, req.Status, util.NowUTC()); err != nil {
		if err == domain.ErrCampaignNotFound {
			http.Error(w, ErrNotFound, http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, found, err := a.Store.GetConversation(r.Context(), id)
	if err != nil {
		slog.Error("get conversation failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(conversationView(c))
}

func (a *API) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if userID == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	stats, err := a.Store.UserConversationStats(r.Context(), util.NormalizePhone(userID))
	if err != nil {
		slog.Error("user stats failed", "err", err, "user_id", userID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// conversationView shapes the JSON the admin API returns for a
// conversation record.
func conversationView(c domain.Conversation) map[string]any {
	out := map[string]any{
		"id":            c.ID,
		"userId":        c.UserID,
		"userName":      c.UserName,
		"campaignId":    c.CampaignID,
		"campaignName":  c.CampaignName,
		"triggerText":   c.TriggerText,
		"matchedText":   c.MatchedText,
		"matchType":     c.MatchType,
		"status":        c.Status,
		"messagesSent":  c.MessagesSent,
		"metadata":      c.Metadata,
		"startedAt":     c.StartedAt,
		"endedAt":       c.EndedAt,
		"lastMessageAt": c.LastMessageAt,
	}
	return out
}
