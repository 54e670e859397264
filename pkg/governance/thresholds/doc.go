// Package thresholds maintains the per-mode adaptive score cut-points and
// the governance mode state machine.
//
// # Read/Write Separation
//
// The evaluation path only reads, through immutable Snapshot values
// published with atomic pointers; it can never trigger an adjustment. The
// feedback path is the only writer and is serialized per mode, so a
// read-modify-write never interleaves with a concurrent adjustment for the
// same mode and no reader observes a partially applied one.
//
// # Clamping
//
// Every computed adjustment is clamped into the configured [min, max]
// bounds. Clamping is reported through the OnClamp hook (wired to metrics)
// and is never an error.
//
// # Mode Escalation
//
// STANDARD is the initial mode. The ModeController tightens the mode one
// step at a time when the sliding-window rate of HIGH/CRITICAL decisions is
// sustained, and only an explicit, audited operator action relaxes it.
package thresholds
