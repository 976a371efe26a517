// Package dispatch sends one campaign's message sequence to one recipient.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/gateway"
	"chatcampaigns/internal/observability"
	"chatcampaigns/internal/util"
)

// ConversationCounter is the store callback fired after every successful
// send. The increment belongs to dispatch, not to the pipeline above it.
type ConversationCounter interface {
	IncrementSent(ctx context.Context, conversationID int64, now time.Time) error
}

type Sender interface {
	SendText(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, int, []byte, error)
}

type Dispatcher struct {
	Sender      Sender
	Counter     ConversationCounter
	Limiter     *rate.Limiter
	Breaker     *gobreaker.CircuitBreaker
	SendTimeout time.Duration
}

// Send renders and delivers every template in order. A per-message failure
// never aborts the sequence; the caller reconciles the aggregate outcome.
// Messages for one conversation are strictly serial, so the recipient sees
// them in campaign order.
func (d *Dispatcher) Send(ctx context.Context, conversationID int64, recipient string, templates []string, vars map[string]string) domain.DispatchResult {
	res := domain.DispatchResult{Total: len(templates)}

	for i, tmpl := range templates {
		body := util.RenderTemplate(tmpl, vars)
		if err := d.sendOne(ctx, recipient, body); err != nil {
			res.Failed++
			slog.Error("dispatch message failed",
				"conversation_id", conversationID,
				"position", i,
				"err", err,
			)
			continue
		}
		res.Sent++
		if err := d.Counter.IncrementSent(ctx, conversationID, util.NowUTC()); err != nil {
			// The message went out; losing the counter update is logged
			// but does not change the delivery tally.
			slog.Error("increment sent counter failed",
				"conversation_id", conversationID,
				"position", i,
				"err", err,
			)
		}
	}
	return res
}

// sendOne delivers a single message with small transient retries. Breaker
// open and exhausted retries both surface as a failed message.
func (d *Dispatcher) sendOne(ctx context.Context, recipient, body string) error {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		if d.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := d.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				observability.GatewaySend.WithLabelValues("rate_limited_local", "0").Inc()
				lastErr = err
				time.Sleep(200 * time.Millisecond)
				continue
			}
		}

		httpStatus, err := d.executeWithBreaker(ctx, recipient, body)

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.GatewaySend.WithLabelValues("cb_open", "0").Inc()
			return err
		}

		if err == nil {
			observability.GatewaySend.WithLabelValues("ok", strconv.Itoa(httpStatus)).Inc()
			observability.GatewayLatency.Observe(time.Since(start).Seconds())
			return nil
		}

		lastErr = err
		observability.GatewaySend.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()

		if !gateway.ShouldRetry(err, httpStatus) {
			return err
		}
		time.Sleep(gateway.Backoff(attempt))
	}
	return lastErr
}

func (d *Dispatcher) executeWithBreaker(ctx context.Context, recipient, body string) (int, error) {
	call := func() (any, error) {
		timeout := d.SendTimeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		_, httpStatus, _, err := d.Sender.SendText(reqCtx, gateway.SendRequest{
			To:   recipient,
			Body: body,
		})
		if err != nil {
			return httpStatus, gatewayCallError{err: err, httpStatus: httpStatus}
		}
		return httpStatus, nil
	}

	var resAny any
	var err error
	if d.Breaker == nil {
		resAny, err = call()
	} else {
		resAny, err = d.Breaker.Execute(call)
	}

	httpStatus := 0
	if s, ok := resAny.(int); ok {
		httpStatus = s
	}
	var gce gatewayCallError
	if errors.As(err, &gce) {
		httpStatus = gce.httpStatus
		err = gce.err
	}
	return httpStatus, err
}

type gatewayCallError struct {
	err        error
	httpStatus int
}

func (e gatewayCallError) Error() string { return e.err.Error() }
func (e gatewayCallError) Unwrap() error { return e.err }
