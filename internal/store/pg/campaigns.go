package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/store"
)

// ListActiveCampaigns returns active campaigns in evaluation order
// (ascending priority, then id as a stable tie-break).
func (s *Store) ListActiveCampaigns(ctx context.Context) ([]store.ActiveCampaign, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, priority, trigger_rules
		FROM campaigns
		WHERE status='active'
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []store.ActiveCampaign
	for rows.Next() {
		var c store.ActiveCampaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Priority, &c.Rules); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CampaignTemplates returns the campaign's message bodies in send order.
func (s *Store) CampaignTemplates(ctx context.Context, campaignID int64) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT body FROM campaign_messages
		WHERE campaign_id=$1
		ORDER BY position ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign templates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

// CreateCampaign inserts a campaign and its ordered templates in one
// transaction. New campaigns start paused so rules can be reviewed before
// they begin matching traffic.
func (s *Store) CreateCampaign(ctx context.Context, in store.CampaignInsert) (int64, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rules := in.Rules
	if len(rules) == 0 {
		rules = []byte(`{}`)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO campaigns (name, status, priority, trigger_rules, created_at)
		VALUES ($1,'paused',$2,$3,$4)
		RETURNING id
	`, in.Name, in.Priority, rules, in.Now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert campaign: %w", err)
	}

	for i, body := range in.Templates {
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_messages (campaign_id, position, body)
			VALUES ($1,$2,$3)
		`, id, i, body); err != nil {
			return 0, fmt.Errorf("insert campaign template: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetCampaign(ctx context.Context, id int64) (domain.Campaign, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, name, status, priority, trigger_rules, created_at, updated_at
		FROM campaigns WHERE id=$1
	`, id)

	var c domain.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.Priority, &c.Rules, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, fmt.Errorf("select campaign: %w", err)
	}
	return c, true, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, status, priority, trigger_rules, created_at, updated_at
		FROM campaigns
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.Priority, &c.Rules, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCampaignStatus flips a campaign between active and paused.
func (s *Store) SetCampaignStatus(ctx context.Context, id int64, status string, now time.Time) error {
	if status != "active" && status != "paused" {
		return fmt.Errorf("unknown campaign status %q", status)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, updated_at=$3 WHERE id=$1
	`, id, status, now)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}
