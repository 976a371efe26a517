// Package orchestrator turns one inbound chat message into at most one
// campaign conversation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatcampaigns/internal/campaign"
	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/gateway"
	"chatcampaigns/internal/observability"
	"chatcampaigns/internal/ratelimit"
	"chatcampaigns/internal/store"
	"chatcampaigns/internal/util"
)

// NoTemplatesReason and AllFailedReason are persisted verbatim as the
// conversation failure reason.
const (
	NoTemplatesReason = "Sin mensajes configurados"
	AllFailedReason   = "Todos los mensajes fallaron"
)

type ConversationStore interface {
	CreateConversation(ctx context.Context, in store.ConversationInsert) (int64, error)
	GetActiveConversation(ctx context.Context, userID string) (domain.Conversation, bool, error)
	CompleteConversation(ctx context.Context, id int64, now time.Time) error
	FailConversation(ctx context.Context, id int64, reason string, now time.Time) error
}

type RateLimiter interface {
	Check(ctx context.Context, userID string) (ratelimit.Decision, error)
	RecordUsage(ctx context.Context, userID string) error
}

type Resolver interface {
	Resolve(ctx context.Context, text string) (*campaign.Match, error)
	Templates(ctx context.Context, campaignID int64) ([]string, error)
}

type Dispatcher interface {
	Send(ctx context.Context, conversationID int64, recipient string, templates []string, vars map[string]string) domain.DispatchResult
}

// Replier sends the optional rate-limit deny reply. It is the only
// user-visible stop condition in the pipeline.
type Replier interface {
	SendText(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, int, []byte, error)
}

// Outcome is the terminal decision reconciliation makes for a conversation.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeFail
)

// ReconcilePolicy maps a dispatch result onto a terminal outcome. The
// default is lenient: any sent message completes the conversation even if
// others failed. Swap the policy to change that without touching the
// pipeline.
type ReconcilePolicy func(domain.DispatchResult) Outcome

func LenientReconcile(res domain.DispatchResult) Outcome {
	if res.Total > 0 && res.Failed == res.Total {
		return OutcomeFail
	}
	return OutcomeComplete
}

// StrictReconcile fails the conversation on any per-message failure.
func StrictReconcile(res domain.DispatchResult) Outcome {
	if res.Failed > 0 {
		return OutcomeFail
	}
	return OutcomeComplete
}

type Orchestrator struct {
	Store      ConversationStore
	Limiter    RateLimiter
	Resolver   Resolver
	Dispatcher Dispatcher
	Replier    Replier

	// Reconcile defaults to LenientReconcile when nil.
	Reconcile ReconcilePolicy

	// StepTimeout bounds each rate-limiter call so a slow Redis cannot
	// block the consume loop. Zero means no bound.
	StepTimeout time.Duration
}

// HandleInbound runs the pipeline for one event. A returned error means the
// event should be redriven (nothing durable happened yet); once a
// conversation exists every later problem is resolved locally and logged.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev domain.InboundMessage) error {
	// 1-2. Events from ourselves, from group chats, or without text are
	// not campaign triggers.
	if ev.FromSelf || ev.GroupChat {
		observability.InboundEvents.WithLabelValues("filtered").Inc()
		return nil
	}
	if ev.Blank() {
		observability.InboundEvents.WithLabelValues("blank").Inc()
		return nil
	}

	userID := util.NormalizePhone(ev.SenderID)

	// 3. At most one active conversation per user.
	if _, active, err := o.Store.GetActiveConversation(ctx, userID); err != nil {
		return fmt.Errorf("dedup check: %w", err)
	} else if active {
		observability.InboundEvents.WithLabelValues("dedup").Inc()
		return nil
	}

	// 4. Rate policy. Deny may carry a mapped reply; unmapped reasons are
	// silent.
	decision, err := o.checkRate(ctx, userID)
	if err != nil {
		return fmt.Errorf("rate check: %w", err)
	}
	if !decision.Allowed {
		observability.InboundEvents.WithLabelValues("rate_denied").Inc()
		observability.RateDenied.WithLabelValues(decision.Reason).Inc()
		o.replyToDeny(ctx, ev, decision.Reason)
		return nil
	}

	// 5. Campaign match.
	m, err := o.Resolver.Resolve(ctx, ev.Text)
	if err != nil {
		return fmt.Errorf("campaign resolve: %w", err)
	}
	if m == nil {
		observability.InboundEvents.WithLabelValues("no_match").Inc()
		return nil
	}
	observability.CampaignMatches.WithLabelValues(string(m.MatchType)).Inc()

	// 6. Budget is consumed only on a real match.
	if err := o.recordUsage(ctx, userID); err != nil {
		// Usage bookkeeping must not cancel a matched conversation.
		slog.Error("rate usage record failed", "user_id", userID, "err", err)
	}

	// 7. Durability boundary: from here the conversation must reach a
	// terminal state.
	convID, err := o.Store.CreateConversation(ctx, store.ConversationInsert{
		UserID:      userID,
		UserName:    ev.SenderName,
		CampaignID:  m.CampaignID,
		TriggerText: ev.Text,
		MatchedText: m.MatchedText,
		MatchType:   m.MatchType,
		Now:         util.NowUTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConversationActive) {
			// Lost the race with a concurrent event for the same user;
			// same silent outcome as the dedup check.
			observability.InboundEvents.WithLabelValues("dedup").Inc()
			return nil
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	o.resolveConversation(ctx, convID, userID, ev, m)
	return nil
}

// resolveConversation drives steps 8-10. Failures here are logged, never
// returned: the event is already represented durably and must not redrive.
func (o *Orchestrator) resolveConversation(ctx context.Context, convID int64, userID string, ev domain.InboundMessage, m *campaign.Match) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic after conversation create",
				"conversation_id", convID, "panic", r)
		}
	}()

	// 8. Templates: an empty campaign is a configuration error, not a
	// delivery error.
	templates, err := o.Resolver.Templates(ctx, m.CampaignID)
	if err != nil {
		slog.Error("fetch templates failed", "conversation_id", convID, "err", err)
		return
	}
	if len(templates) == 0 {
		o.finish(ctx, convID, OutcomeFail, NoTemplatesReason)
		return
	}

	// 9. Sequential dispatch. Successful sends increment the counter from
	// inside the dispatcher.
	vars := map[string]string{
		"name":  ev.SenderName,
		"phone": userID,
	}
	res := o.Dispatcher.Send(ctx, convID, userID, templates, vars)

	// 10. Reconcile.
	policy := o.Reconcile
	if policy == nil {
		policy = LenientReconcile
	}
	o.finish(ctx, convID, policy(res), AllFailedReason)
}

func (o *Orchestrator) finish(ctx context.Context, convID int64, outcome Outcome, failReason string) {
	now := util.NowUTC()
	switch outcome {
	case OutcomeFail:
		if err := o.Store.FailConversation(ctx, convID, failReason, now); err != nil {
			slog.Error("fail conversation failed", "conversation_id", convID, "err", err)
			return
		}
		observability.ConversationsEnded.WithLabelValues(string(domain.StatusFailed)).Inc()
	default:
		if err := o.Store.CompleteConversation(ctx, convID, now); err != nil {
			slog.Error("complete conversation failed", "conversation_id", convID, "err", err)
			return
		}
		observability.ConversationsEnded.WithLabelValues(string(domain.StatusCompleted)).Inc()
	}
}

func (o *Orchestrator) replyToDeny(ctx context.Context, ev domain.InboundMessage, reason string) {
	text, ok := ratelimit.DenyReply(reason)
	if !ok || o.Replier == nil {
		return
	}
	if _, _, _, err := o.Replier.SendText(ctx, gateway.SendRequest{To: ev.SenderID, Body: text}); err != nil {
		slog.Error("rate deny reply failed", "user_id", ev.SenderID, "reason", reason, "err", err)
	}
}

func (o *Orchestrator) checkRate(ctx context.Context, userID string) (ratelimit.Decision, error) {
	ctx, cancel := o.bound(ctx)
	defer cancel()
	return o.Limiter.Check(ctx, userID)
}

func (o *Orchestrator) recordUsage(ctx context.Context, userID string) error {
	ctx, cancel := o.bound(ctx)
	defer cancel()
	return o.Limiter.RecordUsage(ctx, userID)
}

func (o *Orchestrator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.StepTimeout)
}
