//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/store"
	"chatcampaigns/internal/store/pg"
)

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	campaignID := seedCampaign(t, st, "alquiler", 10, []string{"hola {name}", "segundo"})

	now := time.Now().UTC()
	convID, err := st.CreateConversation(ctx, store.ConversationInsert{
		UserID:      "+5491100000001",
		UserName:    "Ana",
		CampaignID:  campaignID,
		TriggerText: "quiero alquilar",
		MatchedText: "alquilar",
		MatchType:   domain.MatchKeyword,
		Now:         now,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	conv, found, err := st.GetActiveConversation(ctx, "+5491100000001")
	if err != nil || !found {
		t.Fatalf("get active: found=%v err=%v", found, err)
	}
	if conv.ID != convID || conv.Status != domain.StatusInitiated {
		t.Fatalf("unexpected active conversation: %+v", conv)
	}

	// first increment moves INITIATED -> IN_PROGRESS
	if err := st.IncrementSent(ctx, convID, now.Add(time.Second)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := st.IncrementSent(ctx, convID, now.Add(2*time.Second)); err != nil {
		t.Fatalf("increment: %v", err)
	}

	conv, _, err = st.GetConversation(ctx, convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.MessagesSent != 2 {
		t.Fatalf("expected 2 messages sent, got %d", conv.MessagesSent)
	}
	if conv.Status != domain.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", conv.Status)
	}
	if conv.LastMessageAt == nil {
		t.Fatal("expected last_message_at to be set")
	}

	if err := st.CompleteConversation(ctx, convID, now.Add(3*time.Second)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	conv, _, _ = st.GetConversation(ctx, convID)
	if conv.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", conv.Status)
	}
	if conv.EndedAt == nil {
		t.Fatal("expected ended_at on terminal conversation")
	}

	// terminal conversations are no longer active
	_, found, err = st.GetActiveConversation(ctx, "+5491100000001")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if found {
		t.Fatal("completed conversation still reported active")
	}
}

func TestActiveConversationUniqueness(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	campaignID := seedCampaign(t, st, "promo", 10, []string{"hola"})

	now := time.Now().UTC()
	ins := store.ConversationInsert{
		UserID:     "+5491100000002",
		CampaignID: campaignID,
		Now:        now,
	}
	if _, err := st.CreateConversation(ctx, ins); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := st.CreateConversation(ctx, ins)
	if !errors.Is(err, domain.ErrConversationActive) {
		t.Fatalf("expected ErrConversationActive, got %v", err)
	}
}

func TestSetConversationStatusRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	campaignID := seedCampaign(t, st, "promo", 10, []string{"hola"})

	now := time.Now().UTC()
	convID, err := st.CreateConversation(ctx, store.ConversationInsert{
		UserID: "+5491100000003", CampaignID: campaignID, Now: now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = st.SetConversationStatus(ctx, convID, domain.ConversationStatus("BOGUS"), now)
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	conv, _, _ := st.GetConversation(ctx, convID)
	if conv.Status != domain.StatusInitiated {
		t.Fatalf("status changed on rejected transition: %s", conv.Status)
	}
}

func TestFailConversationRecordsReason(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	campaignID := seedCampaign(t, st, "promo", 10, nil)

	now := time.Now().UTC()
	convID, err := st.CreateConversation(ctx, store.ConversationInsert{
		UserID: "+5491100000004", CampaignID: campaignID, Now: now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := st.FailConversation(ctx, convID, "Todos los mensajes fallaron", now); err != nil {
		t.Fatalf("fail: %v", err)
	}

	conv, _, _ := st.GetConversation(ctx, convID)
	if conv.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", conv.Status)
	}
	if conv.Metadata["failure_reason"] != "Todos los mensajes fallaron" {
		t.Fatalf("failure reason not persisted: %v", conv.Metadata)
	}
}

func TestUserConversationStats(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	campaignID := seedCampaign(t, st, "promo", 10, []string{"hola"})

	user := "+5491100000005"
	now := time.Now().UTC()
	for i, terminal := range []domain.ConversationStatus{domain.StatusCompleted, domain.StatusFailed, domain.StatusCompleted} {
		id, err := st.CreateConversation(ctx, store.ConversationInsert{
			UserID: user, CampaignID: campaignID, Now: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if err := st.SetConversationStatus(ctx, id, terminal, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("set status %d: %v", i, err)
		}
	}

	stats, err := st.UserConversationStats(ctx, user)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastStarted == nil {
		t.Fatal("expected last started timestamp")
	}
}

func TestCampaignCRUDAndOrdering(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	low := seedCampaign(t, st, "low", 50, []string{"a"})
	high := seedCampaign(t, st, "high", 10, []string{"b", "c"})

	// paused campaigns are invisible to the resolver
	active, err := st.ListActiveCampaigns(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active campaigns, got %d", len(active))
	}

	for _, id := range []int64{low, high} {
		if err := st.SetCampaignStatus(ctx, id, "active", now); err != nil {
			t.Fatalf("activate %d: %v", id, err)
		}
	}

	active, err = st.ListActiveCampaigns(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].Name != "high" || active[1].Name != "low" {
		t.Fatalf("wrong priority order: %+v", active)
	}

	tpls, err := st.CampaignTemplates(ctx, high)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if len(tpls) != 2 || tpls[0] != "b" || tpls[1] != "c" {
		t.Fatalf("templates out of order: %v", tpls)
	}

	if err := st.SetCampaignStatus(ctx, 999999, "paused", now); !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func seedCampaign(t *testing.T, st *pg.Store, name string, priority int, templates []string) int64 {
	t.Helper()
	id, err := st.CreateCampaign(context.Background(), store.CampaignInsert{
		Name:      name,
		Priority:  priority,
		Rules:     []byte(`{"keywords":["alquilar"]}`),
		Templates: templates,
		Now:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed campaign %s: %v", name, err)
	}
	return id
}

func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN not set")
	}

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	admin, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect admin db: %v", err)
	}

	_, err = admin.Exec(context.Background(), "CREATE SCHEMA "+schema)
	if err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	dbDSN, err := withSearchPath(dsn, schema)
	if err != nil {
		admin.Close()
		t.Fatalf("build dsn: %v", err)
	}

	db, err := pgxpool.New(context.Background(), dbDSN)
	if err != nil {
		admin.Close()
		t.Fatalf("connect test db: %v", err)
	}

	sqlPath := filepath.Join("..", "..", "migrations", "001_init.sql")
	sqlBytes, err := os.ReadFile(sqlPath)
	if err != nil {
		db.Close()
		admin.Close()
		t.Fatalf("read migrations: %v", err)
	}

	if _, err := db.Exec(context.Background(), string(sqlBytes)); err != nil {
		db.Close()
		admin.Close()
		t.Fatalf("run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	}

	return db, cleanup
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	opts := q.Get("options")
	if opts != "" {
		opts = opts + " -c search_path=" + schema
	} else {
		opts = "-c search_path=" + schema
	}
	q.Set("options", opts)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
