package gptbot

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors a Conversation reports to. A nil
// *Metrics records nothing.
type Metrics struct {
	attempts      *prometheus.CounterVec
	retries       prometheus.Counter
	remediations  prometheus.Counter
	tokens        prometheus.Counter
	backoffDelays prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gptbot",
				Name:      "completion_attempts_total",
				Help:      "Completion attempts by failure kind (none for success).",
			},
			[]string{"failure_kind"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gptbot",
			Name:      "completion_retries_total",
			Help:      "Attempts scheduled after a transient failure.",
		}),
		remediations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gptbot",
			Name:      "completion_remediations_total",
			Help:      "Invalid messages resent with padding.",
		}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gptbot",
			Name:      "completion_tokens_total",
			Help:      "Tokens billed by the completion service.",
		}),
		backoffDelays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gptbot",
			Name:      "completion_backoff_seconds",
			Help:      "Delay before each retry.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.retries, m.remediations, m.tokens, m.backoffDelays} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAttempt(kind FailureKind, tokens int) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(kind.String()).Inc()
	if tokens > 0 {
		m.tokens.Add(float64(tokens))
	}
}

func (m *Metrics) observeRetry(delay time.Duration) {
	if m == nil {
		return
	}
	m.retries.Inc()
	m.backoffDelays.Observe(delay.Seconds())
}

func (m *Metrics) observeRemediation() {
	if m == nil {
		return
	}
	m.remediations.Inc()
}
