package domain

import (
	"errors"
	"strings"
	"time"
)

type ConversationStatus string

const (
	StatusInitiated  ConversationStatus = "INITIATED"
	StatusInProgress ConversationStatus = "IN_PROGRESS"
	StatusCompleted  ConversationStatus = "COMPLETED"
	StatusFailed     ConversationStatus = "FAILED"
	StatusCancelled  ConversationStatus = "CANCELLED"
)

// Terminal reports whether no further transition can happen from s.
func (s ConversationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the five recognized statuses.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type MatchType string

const (
	MatchExact   MatchType = "EXACT"
	MatchKeyword MatchType = "KEYWORD"
	MatchSynonym MatchType = "SYNONYM"
)

var (
	ErrInvalidStatus = errors.New("invalid conversation status")

	// ErrConversationActive is returned by the store when the optional
	// partial unique index rejects a second non-terminal conversation
	// for the same user.
	ErrConversationActive = errors.New("user already has an active conversation")

	ErrCampaignNotFound = errors.New("campaign not found")

	ErrMissingFields = errors.New("missing required fields")
)

// InboundMessage is one inbound chat event as delivered by the gateway
// webhook. EventID is minted at the webhook edge and doubles as the FIFO
// deduplication id.
type InboundMessage struct {
	EventID    string    `json:"eventId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	FromSelf   bool      `json:"fromSelf,omitempty"`
	GroupChat  bool      `json:"groupChat,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (m InboundMessage) Validate() error {
	if m.EventID == "" || m.SenderID == "" {
		return ErrMissingFields
	}
	return nil
}

// Blank reports whether the message carries no usable text.
func (m InboundMessage) Blank() bool {
	return strings.TrimSpace(m.Text) == ""
}

// DispatchResult is the aggregate outcome of sending one campaign's
// message sequence to one recipient.
type DispatchResult struct {
	Sent   int
	Failed int
	Total  int
}

type Conversation struct {
	ID            int64
	UserID        string
	UserName      string
	CampaignID    int64
	CampaignName  string
	TriggerText   string
	MatchedText   string
	MatchType     MatchType
	Status        ConversationStatus
	MessagesSent  int
	Metadata      map[string]string
	StartedAt     time.Time
	EndedAt       *time.Time
	LastMessageAt *time.Time
	UpdatedAt     time.Time
}

type Campaign struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	Rules     []byte     `json:"rules"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UserStats aggregates a user's conversation history.
type UserStats struct {
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	LastStarted *time.Time `json:"lastStarted,omitempty"`
}
