// Package audit defines the tamper-evident audit chain record and its
// canonical serialization.
//
// # Hash Chain
//
// Every record's hash commits to its predecessor:
//
//	hash(n) = hex(SHA-256(hash(n-1) || "\n" || canonical(n)))
//
// with a fixed all-zero genesis value for the first record. Recomputing the
// chain from genesis must reproduce every stored hash exactly; the first
// sequence number where it does not is where tampering occurred.
//
// # Canonical Serialization
//
// The canonical form (Record.Canonical) is a cross-language contract:
// fixed field order, fixed encoding, every field present for every record
// kind. It is covered by a golden test; changing it breaks verification of
// existing chains and of chains produced by other implementations.
//
// # Layers
//
// The ledger subpackage owns sequencing and forwarding (single writer,
// backpressure); the storage subpackage provides the durable chain stores;
// export and retention mirror the record lifecycle around them.
package audit
