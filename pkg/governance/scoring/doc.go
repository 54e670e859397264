// Package scoring computes impact scores for inter-agent messages.
//
// A Strategy turns a message plus its context (sender trust tier, recipient
// criticality, rolling violation rate) into a bounded numeric score in
// [0,1]; the Scorer maps that score to a discrete ImpactLevel using the
// active threshold snapshot, resolving ties toward the stricter level.
//
// The scoring formula is pluggable behind the Strategy interface. The
// default WeightedStrategy is a normalized weighted sum; callers depend
// only on determinism, boundedness, and per-signal monotonicity, which are
// covered by property tests rather than exact-value assertions.
//
// Missing context fails closed: a sender whose trust tier cannot be
// resolved scores 1.0 and maps to CRITICAL.
package scoring
