// Package metrics exposes Prometheus collectors for every governance
// concern: decisions by action/level/mode, evaluation latency, feedback
// outcomes, threshold clamps, mode transitions, audit ledger delivery and
// backlog depth, and policy service degradation.
//
// One Collector owns a private registry; it implements the observer
// interfaces the engine and the ledger accept, so wiring is a matter of
// passing the collector where an observer is expected.
package metrics
