package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// CreateConversation opens a new conversation in INITIATED. If the
// optional one-active-per-user partial unique index is installed, a
// concurrent duplicate surfaces as domain.ErrConversationActive.
func (s *Store) CreateConversation(ctx context.Context, in store.ConversationInsert) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO conversations
			(user_id, user_name, campaign_id, trigger_text, matched_text, match_type, status, messages_sent, metadata, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,'{}',$8,$8)
		RETURNING id
	`, in.UserID, in.UserName, in.CampaignID, in.TriggerText, in.MatchedText, string(in.MatchType), string(domain.StatusInitiated), in.Now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, domain.ErrConversationActive
		}
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// GetActiveConversation returns the most recent non-terminal conversation
// for the user, if any.
func (s *Store) GetActiveConversation(ctx context.Context, userID string) (domain.Conversation, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, user_id, user_name, campaign_id, trigger_text, matched_text, match_type, status, messages_sent, started_at
		FROM conversations
		WHERE user_id=$1 AND status IN ($2,$3)
		ORDER BY started_at DESC
		LIMIT 1
	`, userID, string(domain.StatusInitiated), string(domain.StatusInProgress))

	var c domain.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.UserName, &c.CampaignID, &c.TriggerText,
		&c.MatchedText, &c.MatchType, &c.Status, &c.MessagesSent, &c.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, fmt.Errorf("select active conversation: %w", err)
	}
	return c, true, nil
}

// GetConversation returns the full record joined with the campaign name.
func (s *Store) GetConversation(ctx context.Context, id int64) (domain.Conversation, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT c.id, c.user_id, c.user_name, c.campaign_id, COALESCE(cp.name,''), c.trigger_text,
		       c.matched_text, c.match_type, c.status, c.messages_sent, c.metadata,
		       c.started_at, c.ended_at, c.last_message_at, c.updated_at
		FROM conversations c
		LEFT JOIN campaigns cp ON cp.id = c.campaign_id
		WHERE c.id=$1
	`, id)

	var c domain.Conversation
	var metadata []byte
	err := row.Scan(&c.ID, &c.UserID, &c.UserName, &c.CampaignID, &c.CampaignName, &c.TriggerText,
		&c.MatchedText, &c.MatchType, &c.Status, &c.MessagesSent, &metadata,
		&c.StartedAt, &c.EndedAt, &c.LastMessageAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, fmt.Errorf("select conversation: %w", err)
	}
	_ = json.Unmarshal(metadata, &c.Metadata)
	return c, true, nil
}

// IncrementSent bumps the counter atomically in the database, stamps the
// last-send time and forces IN_PROGRESS unless the conversation already
// reached a terminal status.
func (s *Store) IncrementSent(ctx context.Context, id int64, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET messages_sent = messages_sent + 1,
		    last_message_at = $2,
		    updated_at = $2,
		    status = CASE WHEN status IN ($3,$4,$5) THEN status ELSE $6 END
		WHERE id=$1
	`, id, now,
		string(domain.StatusCompleted), string(domain.StatusFailed), string(domain.StatusCancelled),
		string(domain.StatusInProgress))
	if err != nil {
		return fmt.Errorf("increment messages_sent: %w", err)
	}
	return nil
}

// SetConversationStatus validates the status and updates it. ended_at is
// set iff the new status is terminal; the stamp is re-applied on every
// terminal transition, it is not write-once.
func (s *Store) SetConversationStatus(ctx context.Context, id int64, status domain.ConversationStatus, now time.Time) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	var endedAt any
	if status.Terminal() {
		endedAt = now
	}
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET status=$2, updated_at=$3, ended_at=$4
		WHERE id=$1
	`, id, string(status), now, endedAt)
	if err != nil {
		return fmt.Errorf("update conversation status: %w", err)
	}
	return nil
}

func (s *Store) CompleteConversation(ctx context.Context, id int64, now time.Time) error {
	return s.SetConversationStatus(ctx, id, domain.StatusCompleted, now)
}

// FailConversation marks the conversation FAILED and merges the reason into
// the metadata map without discarding other keys.
func (s *Store) FailConversation(ctx context.Context, id int64, reason string, now time.Time) error {
	meta, _ := json.Marshal(map[string]string{"failure_reason": reason})
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET status=$2, ended_at=$3, updated_at=$3, metadata = metadata || $4::jsonb
		WHERE id=$1
	`, id, string(domain.StatusFailed), now, meta)
	if err != nil {
		return fmt.Errorf("fail conversation: %w", err)
	}
	return nil
}

func (s *Store) UserConversationStats(ctx context.Context, userID string) (domain.UserStats, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status=$2),
		       COUNT(*) FILTER (WHERE status=$3),
		       MAX(started_at)
		FROM conversations
		WHERE user_id=$1
	`, userID, string(domain.StatusCompleted), string(domain.StatusFailed))

	var out domain.UserStats
	if err := row.Scan(&out.Total, &out.Completed, &out.Failed, &out.LastStarted); err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return out, nil
}
