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

	"chatcampaigns/internal/awsutil"
	"chatcampaigns/internal/config"
	"chatcampaigns/internal/httpserver"
	"chatcampaigns/internal/logging"
	"chatcampaigns/internal/observability"
	sqsqueue "chatcampaigns/internal/queue/sqs"
)

func main() {
	cfg := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("webhook sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.InboundQueueURL}

	srv := httpserver.New()
	srv.Mux.Handle("/metrics", promhttp.Handler())
	srv.Mux.HandleFunc("/healthz", httpserver.Healthz())
	srv.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.InboundQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	))

	wh := &httpserver.Webhook{
		Queue: producer,
		Token: cfg.GatewayWebhookToken,
	}
	wh.Register(srv.Mux)

	handler := httpserver.Logging(httpserver.Metrics(observability.APIRequests)(srv.Mux))
	s := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook listening", "port", cfg.Port)
		errCh <- s.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook shutdown", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = s.Shutdown(shutdownCtx)
}
