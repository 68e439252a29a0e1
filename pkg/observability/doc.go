/*
Package observability turns analysis lifecycle hooks into Prometheus metrics
and structured log lines.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	explainer := xplanning.New(factory, xplanning.WithAnalysisOptions(analysis.WithHooks(hooks)))
*/
package observability
