/*
Package observability turns engine lifecycle events into Prometheus metrics and
structured log lines.

Both are plain domain.LifecycleHooks, so they compose with domain.MergeHooks:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.MergeHooks(metrics.Hooks(), observability.LogHooks(logger))
	engine, err := chatflow.New(chatflow.WithLifecycleHooks(hooks))
*/
package observability
