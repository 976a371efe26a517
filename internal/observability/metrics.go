package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	InboundEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_inbound_events_total", Help: "Inbound pipeline outcomes"},
		[]string{"outcome"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	RateDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_rate_denied_total", Help: "Rate limiter denials"},
		[]string{"reason"},
	)
	CampaignMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_matches_total", Help: "Campaign trigger matches"},
		[]string{"match_type"},
	)
	ConversationsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chatcampaigns_conversations_ended_total", Help: "Terminal conversation outcomes"},
		[]string{"status"},
	)
	GatewaySend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gateway_send_total", Help: "Gateway send outcomes"},
		[]string{"result", "http_status"},
	)
	GatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "gateway_send_latency_seconds", Help: "Gateway send latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, InboundEvents, Enqueues, RateDenied,
		CampaignMatches, ConversationsEnded, GatewaySend, GatewayLatency)
}
