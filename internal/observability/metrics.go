package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const namespace = "hostbot"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsEnqueued *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec

	aiRequests *prometheus.CounterVec
	aiLatency  *prometheus.HistogramVec
	aiTokens   *prometheus.CounterVec

	circuitState       *prometheus.GaugeVec
	circuitTransitions *prometheus.CounterVec

	channelSends      *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide metrics, nil until Init ran with enabled=true.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds a Metrics on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "In-flight API requests.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "jobs_total",
			Help: "Processed jobs by queue and outcome (succeeded, retry, failed).",
		}, []string{"queue", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "queue", Name: "job_duration_seconds",
			Help:    "Handler run time per queue.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"queue"}),
		jobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "jobs_enqueued_total",
			Help: "Enqueued jobs by queue and priority.",
		}, []string{"queue", "priority"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "depth",
			Help: "Jobs per queue and status.",
		}, []string{"queue", "status"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ai", Name: "requests_total",
			Help: "AI router calls by provider, mode and outcome.",
		}, []string{"provider", "mode", "outcome"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ai", Name: "request_duration_seconds",
			Help:    "AI vendor call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider", "mode"}),
		aiTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ai", Name: "tokens_total",
			Help: "Tokens reported by AI vendors.",
		}, []string{"provider", "model"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "circuit", Name: "state",
			Help: "Circuit state per provider (0 closed, 1 half open, 2 open).",
		}, []string{"provider"}),
		circuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "circuit", Name: "transitions_total",
			Help: "Circuit state transitions.",
		}, []string{"provider", "from", "to"}),
		channelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "channel", Name: "sends_total",
			Help: "Outbound channel sends by channel and outcome.",
		}, []string{"channel", "outcome"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "webhook", Name: "deliveries_total",
			Help: "Webhook delivery attempts by event and outcome.",
		}, []string{"event", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "notifications_total",
			Help: "Delivery notifications by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobsTotal, m.jobDuration, m.jobsEnqueued, m.queueDepth,
		m.aiRequests, m.aiLatency, m.aiTokens,
		m.circuitState, m.circuitTransitions,
		m.channelSends, m.webhookDeliveries, m.notifications,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format. A nil Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method, route, status = orUnknown(method), orUnknown(route), orUnknown(status)
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveJob(queue, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	queue = orUnknown(queue)
	m.jobsTotal.WithLabelValues(queue, orUnknown(outcome)).Inc()
	if dur > 0 {
		m.jobDuration.WithLabelValues(queue).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncEnqueued(queue string, priority int) {
	if m == nil {
		return
	}
	m.jobsEnqueued.WithLabelValues(orUnknown(queue), priorityLabel(priority)).Inc()
}

func priorityLabel(p int) string {
	switch {
	case p <= 1:
		return "1"
	case p <= 3:
		return "3"
	default:
		return "5"
	}
}

func (m *Metrics) SetQueueDepth(queue, status string, n int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(orUnknown(queue), orUnknown(status)).Set(float64(n))
}

func (m *Metrics) ObserveAIRequest(provider, mode, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	provider, mode = orUnknown(provider), orUnknown(mode)
	m.aiRequests.WithLabelValues(provider, mode, orUnknown(outcome)).Inc()
	if dur > 0 {
		m.aiLatency.WithLabelValues(provider, mode).Observe(dur.Seconds())
	}
}

func (m *Metrics) AddAITokens(provider, model string, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.aiTokens.WithLabelValues(orUnknown(provider), orUnknown(model)).Add(float64(tokens))
}

// ObserveCircuitTransition matches the breaker's OnStateChange signature after
// converting states to strings.
func (m *Metrics) ObserveCircuitTransition(provider, from, to string) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	m.circuitTransitions.WithLabelValues(provider, orUnknown(from), orUnknown(to)).Inc()
	m.circuitState.WithLabelValues(provider).Set(circuitStateValue(to))
}

func circuitStateValue(state string) float64 {
	switch strings.ToUpper(state) {
	case "OPEN":
		return 2
	case "HALF_OPEN":
		return 1
	default:
		return 0
	}
}

func (m *Metrics) IncChannelSend(channel, outcome string) {
	if m == nil {
		return
	}
	m.channelSends.WithLabelValues(orUnknown(channel), orUnknown(outcome)).Inc()
}

func (m *Metrics) IncWebhookDelivery(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(orUnknown(event), orUnknown(outcome)).Inc()
}

func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(orUnknown(outcome)).Inc()
}

// QueueCounter reports job counts keyed by queue then status.
type QueueCounter func(ctx context.Context) (map[string]map[string]int64, error)

var queueStatuses = []string{"queued", "running", "succeeded", "failed"}

// StartJobQueueCollector refreshes the queue depth gauge every interval until ctx ends.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, counter QueueCounter, queues []string, interval time.Duration) {
	if m == nil || counter == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectQueueDepth(ctx, log, counter, queues)
			}
		}
	}()
}

func (m *Metrics) collectQueueDepth(ctx context.Context, log *logger.Logger, counter QueueCounter, queues []string) {
	counts, err := counter(ctx)
	if err != nil {
		if log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
		return
	}
	for _, q := range queues {
		for _, s := range queueStatuses {
			m.SetQueueDepth(q, s, counts[q][s])
		}
	}
}
