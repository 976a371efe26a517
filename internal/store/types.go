package store

import (
	"time"

	"chatcampaigns/internal/domain"
)

// ConversationInsert carries everything needed to open a conversation.
// Status is always INITIATED at insert; the id comes back from the store.
type ConversationInsert struct {
	UserID      string
	UserName    string
	CampaignID  int64
	TriggerText string
	MatchedText string
	MatchType   domain.MatchType
	Now         time.Time
}

// CampaignInsert is the admin-API create payload. Templates are stored in
// listed order; an empty list is allowed (and is exactly the configuration
// error the pipeline later reports).
type CampaignInsert struct {
	Name      string
	Priority  int
	Rules     []byte
	Templates []string
	Now       time.Time
}

// ActiveCampaign is the resolver's read model: just enough to run the
// matcher in priority order.
type ActiveCampaign struct {
	ID       int64
	Name     string
	Priority int
	Rules    []byte
}
