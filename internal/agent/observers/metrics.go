package observers

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront_agent"

// Metrics groups the collectors fed by the callback handlers.
type Metrics struct {
	ModelCalls    *prometheus.CounterVec
	ModelTokens   *prometheus.CounterVec
	ModelCostUSD  prometheus.Counter
	ModelDuration prometheus.Histogram
	ToolCalls     *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM gateway calls by outcome.",
		}, []string{"status"}),
		ModelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by LLM calls.",
		}, []string{"kind"}),
		ModelCostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Estimated LLM spend in USD.",
		}),
		ModelDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and outcome.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg == nil {
		return m, nil
	}

	m.ModelCalls = register(reg, m.ModelCalls)
	m.ModelTokens = register(reg, m.ModelTokens)
	m.ModelCostUSD = register(reg, m.ModelCostUSD)
	m.ModelDuration = register(reg, m.ModelDuration)
	m.ToolCalls = register(reg, m.ToolCalls)
	m.ToolDuration = register(reg, m.ToolDuration)
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
