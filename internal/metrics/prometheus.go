package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var HttpRateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

var GatewayAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sms_gateway_attempts_total",
		Help: "Total number of HTTP attempts made against the SMS gateway",
	},
	[]string{"result"},
)

var GatewaySendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sms_gateway_sends_total",
		Help: "Total number of sends after retries were exhausted or succeeded",
	},
	[]string{"result"},
)

var GatewaySendDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "sms_gateway_send_duration_seconds",
		Help:    "Time taken to hand a message to the SMS gateway, retries included",
		Buckets: prometheus.DefBuckets,
	},
)

var RecipientsSettledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sms_recipients_settled_total",
		Help: "Total number of recipient records that reached a terminal status",
	},
	[]string{"status", "region"},
)

var CampaignsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sms_campaigns_finished_total",
		Help: "Total number of campaigns finalized",
	},
	[]string{"kind", "status"},
)

var StaleRecipientsSweptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sms_stale_recipients_swept_total",
		Help: "Total number of pending recipients failed by the reconciler",
	},
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			HttpRateLimitRejectionsTotal,
			GatewayAttemptsTotal,
			GatewaySendsTotal,
			GatewaySendDuration,
			RecipientsSettledTotal,
			CampaignsFinishedTotal,
			StaleRecipientsSweptTotal,
		)
	})
}
