package observability

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "xplanning"

// Metrics holds the collectors fed by analysis hooks.
type Metrics struct {
	Evaluations        *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	Searches           *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
	ActiveSearches     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "evaluations_total",
				Help:      "Policy evaluations by outcome (evaluated, cached, error).",
			},
			[]string{"outcome"},
		),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluations.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"cached"},
		),
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "alternative_searches_total",
				Help:      "Alternative searches by QFunction and result (found, reason, error).",
			},
			[]string{"qfunction", "result"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "alternative_search_duration_seconds",
				Help:      "Duration of alternative searches.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"qfunction"},
		),
		ActiveSearches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "alternative_searches_active",
			Help:      "Alternative searches in progress.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.EvaluationDuration, m.Searches, m.SearchDuration, m.ActiveSearches)
	}
	return m
}

// Hooks records every analysis event.
func (m *Metrics) Hooks() analysis.Hooks {
	return analysis.Hooks{
		OnEvaluate: func(_ context.Context, e *analysis.EvaluationEvent) {
			outcome := "evaluated"
			switch {
			case e.Err != nil:
				outcome = "error"
			case e.Cached:
				outcome = "cached"
			}
			m.Evaluations.WithLabelValues(outcome).Inc()
			if e.Err == nil {
				m.EvaluationDuration.WithLabelValues(strconv.FormatBool(e.Cached)).Observe(e.Duration.Seconds())
			}
		},
		OnSearchStart: func(context.Context, *analysis.SearchEvent) {
			m.ActiveSearches.Inc()
		},
		OnSearchDone: func(_ context.Context, e *analysis.SearchEvent) {
			m.ActiveSearches.Dec()
			m.Searches.WithLabelValues(e.QFunction, searchResult(e)).Inc()
			m.SearchDuration.WithLabelValues(e.QFunction).Observe(e.Duration.Seconds())
		},
	}
}

func searchResult(e *analysis.SearchEvent) string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Found:
		return "found"
	case e.Reason != "":
		return string(e.Reason)
	}
	return "none"
}

// LogHooks logs every analysis event on logger at debug level. Failures are
// warnings unless caused by cancellation.
func LogHooks(logger *slog.Logger) analysis.Hooks {
	return analysis.Hooks{
		OnEvaluate: func(ctx context.Context, e *analysis.EvaluationEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "evaluation failed", "policy", e.PolicyKey, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "policy evaluated", "policy", e.PolicyKey, "cached", e.Cached, "duration", e.Duration)
		},
		OnSearchStart: func(ctx context.Context, e *analysis.SearchEvent) {
			logger.DebugContext(ctx, "searching alternative", "qa", e.QFunction)
		},
		OnSearchDone: func(ctx context.Context, e *analysis.SearchEvent) {
			switch {
			case e.Err != nil:
				level := slog.LevelWarn
				if errors.Is(e.Err, context.Canceled) {
					level = slog.LevelDebug
				}
				logger.Log(ctx, level, "alternative search failed", "qa", e.QFunction, "err", e.Err)
			case e.Found:
				logger.DebugContext(ctx, "alternative found", "qa", e.QFunction, "duration", e.Duration)
			default:
				logger.DebugContext(ctx, "no alternative", "qa", e.QFunction, "reason", reasonOf(e.Reason))
			}
		},
	}
}

func reasonOf(r ports.Reason) string {
	if r == "" {
		return "none"
	}
	return string(r)
}
