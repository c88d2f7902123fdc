// Package metrics collects routing and probing statistics for the router
// services.
//
// Producers emit MetricEvent values through Collector.Emit, which never blocks:
// when the buffer is full the event is dropped. A single goroutine started by
// Collector.Start applies events to the Metrics store, and Handler serves a
// JSON Snapshot of it.
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventRouteServed,
//		Class:    "Web",
//		Instance: "http://localhost:8511",
//	})
//
//	snapshot := collector.Snapshot("round-robin")
//
// Pending events are drained when the context passed to Start is cancelled.
package metrics
