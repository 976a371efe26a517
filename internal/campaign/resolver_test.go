package campaign

import (
	"context"
	"testing"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/store"
)

type fakeSource struct {
	campaigns []store.ActiveCampaign
	templates map[int64][]string
}

func (f *fakeSource) ListActiveCampaigns(ctx context.Context) ([]store.ActiveCampaign, error) {
	return f.campaigns, nil
}

func (f *fakeSource) CampaignTemplates(ctx context.Context, id int64) ([]string, error) {
	return f.templates[id], nil
}

func TestFirstCampaignInPriorityOrderWins(t *testing.T) {
	src := &fakeSource{
		campaigns: []store.ActiveCampaign{
			{ID: 1, Name: "Alquileres", Priority: 1, Rules: []byte(`{"keywords":["alquiler"]}`)},
			{ID: 2, Name: "Ventas", Priority: 2, Rules: []byte(`{"keywords":["alquiler","venta"]}`)},
		},
	}
	r := &Resolver{Source: src}

	m, err := r.Resolve(context.Background(), "busco alquiler")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m == nil {
		t.Fatalf("expected a match")
	}
	if m.CampaignID != 1 || m.CampaignName != "Alquileres" {
		t.Fatalf("expected campaign 1 to win the tie-break, got %+v", m)
	}
	if m.MatchType != domain.MatchKeyword {
		t.Fatalf("expected KEYWORD, got %s", m.MatchType)
	}
}

func TestNoMatchReturnsNil(t *testing.T) {
	src := &fakeSource{
		campaigns: []store.ActiveCampaign{
			{ID: 1, Name: "Alquileres", Rules: []byte(`{"keywords":["alquiler"]}`)},
		},
	}
	r := &Resolver{Source: src}

	m, err := r.Resolve(context.Background(), "buenas tardes")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil, got %+v", m)
	}
}

func TestBrokenRulesNeverMatch(t *testing.T) {
	src := &fakeSource{
		campaigns: []store.ActiveCampaign{
			{ID: 1, Name: "Rota", Rules: []byte(`not json at all`)},
			{ID: 2, Name: "Sana", Rules: []byte(`{"keywords":["hola"]}`)},
		},
	}
	r := &Resolver{Source: src}

	m, err := r.Resolve(context.Background(), "hola")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m == nil || m.CampaignID != 2 {
		t.Fatalf("expected the healthy campaign to match, got %+v", m)
	}
}
