package config

import "github.com/kelseyhightower/envconfig"

type WebhookConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Shared secret the chat gateway includes on inbound webhooks.
	GatewayWebhookToken string `envconfig:"GATEWAY_WEBHOOK_TOKEN" required:"true"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	InboundQueueURL    string `envconfig:"INBOUND_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	RedisAddr   string `envconfig:"REDIS_ADDR" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	InboundQueueURL    string `envconfig:"INBOUND_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"20"`

	// Per-user trigger caps (rate limiter policy)
	MaxMatchesPerHour int    `envconfig:"MAX_MATCHES_PER_HOUR" default:"2"`
	MaxMatchesPerDay  int    `envconfig:"MAX_MATCHES_PER_DAY" default:"5"`
	MatchCooldown     string `envconfig:"MATCH_COOLDOWN" default:"10m"`

	// Chat gateway (outbound sends)
	GatewayBaseURL    string  `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewayAPIKey     string  `envconfig:"GATEWAY_API_KEY" required:"true"`
	GatewaySessionID  string  `envconfig:"GATEWAY_SESSION_ID" required:"true"`
	GatewayRPSPerPod  float64 `envconfig:"GATEWAY_RPS_PER_POD" default:"5"`
	GatewayBurst      int     `envconfig:"GATEWAY_BURST" default:"10"`
	GatewaySendTimeout string `envconfig:"GATEWAY_SEND_TIMEOUT" default:"8s"`
}

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
