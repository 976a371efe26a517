package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"chatcampaigns/internal/awsutil"
	"chatcampaigns/internal/campaign"
	"chatcampaigns/internal/config"
	"chatcampaigns/internal/dispatch"
	"chatcampaigns/internal/domain"
	"chatcampaigns/internal/gateway"
	"chatcampaigns/internal/httpserver"
	"chatcampaigns/internal/logging"
	"chatcampaigns/internal/observability"
	"chatcampaigns/internal/orchestrator"
	sqsqueue "chatcampaigns/internal/queue/sqs"
	"chatcampaigns/internal/ratelimit"
	"chatcampaigns/internal/store/pg"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.Connect(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	st := pg.New(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()

	if err := rdb.Ping(startupCtx).Err(); err != nil {
		slog.Error("redis not reachable", "err", err)
		os.Exit(1)
	}
	if _, err := sqsClient.GetQueueAttributes(startupCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &cfg.InboundQueueURL,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	}); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	cooldown, err := time.ParseDuration(cfg.MatchCooldown)
	if err != nil {
		slog.Error("invalid MATCH_COOLDOWN", "err", err)
		os.Exit(1)
	}
	sendTimeout, err := time.ParseDuration(cfg.GatewaySendTimeout)
	if err != nil {
		slog.Error("invalid GATEWAY_SEND_TIMEOUT", "err", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(rdb, ratelimit.Config{
		MaxPerHour: cfg.MaxMatchesPerHour,
		MaxPerDay:  cfg.MaxMatchesPerDay,
		Cooldown:   cooldown,
	})

	client := &gateway.Client{
		BaseURL:   cfg.GatewayBaseURL,
		APIKey:    cfg.GatewayAPIKey,
		SessionID: cfg.GatewaySessionID,
		HTTP:      &http.Client{Timeout: sendTimeout + 2*time.Second},
	}
	session := gateway.NewSession(client)
	if err := session.Transition(gateway.StateInitializing); err != nil {
		slog.Error("session init", "err", err)
		os.Exit(1)
	}
	// The HTTP gateway pairs out of band; a reachable API means ready.
	if err := session.Transition(gateway.StateReady); err != nil {
		slog.Error("session ready", "err", err)
		os.Exit(1)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})

	dispatcher := &dispatch.Dispatcher{
		Sender:      client,
		Counter:     st,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.GatewayRPSPerPod), cfg.GatewayBurst),
		Breaker:     cb,
		SendTimeout: sendTimeout,
	}

	orch := &orchestrator.Orchestrator{
		Store:       st,
		Limiter:     limiter,
		Resolver:    &campaign.Resolver{Source: st},
		Dispatcher:  dispatcher,
		Replier:     client,
		StepTimeout: 5 * time.Second,
	}

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.InboundQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// health + metrics server
	srv := httpserver.New()
	srv.Mux.Handle("/metrics", promhttp.Handler())
	srv.Mux.HandleFunc("/healthz", httpserver.Healthz())
	srv.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error { return rdb.Ping(c).Err() },
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.InboundQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	))

	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(srv.Mux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.InboundQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, ev domain.InboundMessage) (err error) {
			start := time.Now()
			defer func() {
				if err != nil {
					slog.Error("inbound event finish",
						"event_id", ev.EventID,
						"status", "error",
						"duration", time.Since(start),
						"err", err,
					)
				} else {
					slog.Info("inbound event finish",
						"event_id", ev.EventID,
						"status", "ok",
						"duration", time.Since(start),
					)
				}
			}()
			return orch.HandleInbound(ctx, ev)
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()
	_ = session.Transition(gateway.StateDestroyed)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
