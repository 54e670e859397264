// Package telemetry provides observability for the governance engine.
//
// The telemetry package is organized into sub-packages:
//
//   - logging: structured slog-based logging with request/actor context
//   - metrics: Prometheus metrics for decisions, thresholds, and the ledger
//   - health: liveness and readiness check endpoints
//
// The metrics Collector implements the observer interfaces of the engine
// and the audit ledger, so wiring observability is a matter of passing one
// value into both constructors:
//
//	collector := metrics.NewCollector(nil, nil)
//	led, _ := ledger.New(store, &ledger.Config{Observer: collector})
//	eng, _ := engine.NewEngine(cfg, engine.Components{Observer: collector, ...})
package telemetry
