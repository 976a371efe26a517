// Package campaign resolves inbound text to the campaign it should trigger.
package campaign

import (
	"context"
	"fmt"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/match"
	"chatcampaigns/internal/store"
)

// CampaignSource is what the resolver needs from the store.
type CampaignSource interface {
	ListActiveCampaigns(ctx context.Context) ([]store.ActiveCampaign, error)
	CampaignTemplates(ctx context.Context, campaignID int64) ([]string, error)
}

// Match names the campaign an inbound text triggered and how it matched.
type Match struct {
	CampaignID   int64
	CampaignName string
	MatchedText  string
	MatchType    domain.MatchType
}

type Resolver struct {
	Source CampaignSource
}

// Resolve runs the matcher against each active campaign in priority order.
// The first campaign whose rules match wins; campaigns with unparseable or
// empty rules simply never match.
func (r *Resolver) Resolve(ctx context.Context, text string) (*Match, error) {
	campaigns, err := r.Source.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve campaign: %w", err)
	}

	for _, c := range campaigns {
		rules := match.ParseRuleSet(c.Rules)
		res, ok := match.Match(text, rules)
		if !ok {
			continue
		}
		return &Match{
			CampaignID:   c.ID,
			CampaignName: c.Name,
			MatchedText:  res.MatchedText,
			MatchType:    domain.MatchType(res.MatchType),
		}, nil
	}
	return nil, nil
}

// Templates returns the campaign's ordered message bodies.
func (r *Resolver) Templates(ctx context.Context, campaignID int64) ([]string, error) {
	return r.Source.CampaignTemplates(ctx, campaignID)
}
