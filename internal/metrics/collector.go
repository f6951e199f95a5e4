// Package metrics exposes Prometheus instrumentation for the conversation server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so several can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	chatRequests *prometheus.CounterVec
	chatDuration *prometheus.HistogramVec

	agentTurns    *prometheus.CounterVec
	agentDuration prometheus.Histogram

	transcriptions *prometheus.CounterVec
	sttDuration    prometheus.Histogram

	sessionsActive prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec
	sessionLength  prometheus.Histogram

	wsConnections prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		chatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Chat completion attempts by outcome",
		}, []string{"provider", "outcome"}),
		chatDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Chat completion attempt duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		agentTurns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Agent replies produced, split by fallback and audio",
		}, []string{"fallback", "audio"}),
		agentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_turn_duration_seconds",
			Help:      "Time from thinking to response for one agent",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}),
		transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Speech-to-text requests by outcome",
		}, []string{"outcome"}),
		sttDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Speech-to-text request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently registered",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Finalized sessions by status",
		}, []string{"status"}),
		sessionLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lifetime_seconds",
			Help:      "Wall-clock lifetime of finalized sessions",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1800},
		}),
		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections",
		}),
	}
}

// ObserveChat implements assistant.Observer.
func (c *Collector) ObserveChat(provider, outcome string, took time.Duration) {
	c.chatRequests.WithLabelValues(provider, outcome).Inc()
	c.chatDuration.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveAgentTurn implements conversation.AgentObserver.
func (c *Collector) ObserveAgentTurn(agent string, fallback, audio bool, took time.Duration) {
	c.agentTurns.WithLabelValues(strconv.FormatBool(fallback), strconv.FormatBool(audio)).Inc()
	c.agentDuration.Observe(took.Seconds())
}

func (c *Collector) ObserveTranscription(outcome string, took time.Duration) {
	c.transcriptions.WithLabelValues(outcome).Inc()
	c.sttDuration.Observe(took.Seconds())
}

// SessionStarted implements session.Observer.
func (c *Collector) SessionStarted() { c.sessionsActive.Inc() }

// SessionEnded implements session.Observer.
func (c *Collector) SessionEnded(status string, lifetime time.Duration) {
	c.sessionsActive.Dec()
	c.sessionsEnded.WithLabelValues(status).Inc()
	c.sessionLength.Observe(lifetime.Seconds())
}

func (c *Collector) ConnectionOpened() { c.wsConnections.Inc() }
func (c *Collector) ConnectionClosed() { c.wsConnections.Dec() }

// Middleware records request counts and latency by route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.httpRequests.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(ctx.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }
