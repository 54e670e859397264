// Package ratewindow provides a sliding-window event counter used for rate
// observations over a rolling time period: the governance mode controller
// tracks the rate of high-impact decisions with it, and the agent directory
// tracks per-sender violation rates.
package ratewindow

import (
	"sync"
	"time"
)

// Window counts events over a rolling time period using fixed-granularity
// slots. Events older than the window fall out automatically as time
// advances. Safe for concurrent use.
type Window struct {
	span time.Duration // total window duration
	slot time.Duration // granularity of one slot

	mu    sync.Mutex
	slots []slotCount
}

// slotCount is one time-aligned counter slot.
type slotCount struct {
	start time.Time
	n     int64
}

// New creates a sliding window covering span with slot-sized granularity.
// span/slot determines the number of slots; smaller slots give more accurate
// expiry at the cost of memory.
func New(span, slot time.Duration) *Window {
	if slot <= 0 {
		slot = time.Second
	}
	n := int(span / slot)
	if n < 1 {
		n = 1
	}
	return &Window{
		span:  span,
		slot:  slot,
		slots: make([]slotCount, n),
	}
}

// Observe records n events at the current time.
func (w *Window) Observe(n int64) {
	w.observeAt(time.Now(), n)
}

// observeAt is split out so tests can drive the clock.
func (w *Window) observeAt(now time.Time, n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := now.Truncate(w.slot)
	idx := int(start.UnixNano()/int64(w.slot)) % len(w.slots)

	// A slot is reused once its previous occupancy has aged out of the window.
	if !w.slots[idx].start.Equal(start) {
		w.slots[idx] = slotCount{start: start}
	}
	w.slots[idx].n += n
}

// Total returns the number of events still inside the window.
func (w *Window) Total() int64 {
	return w.totalAt(time.Now())
}

func (w *Window) totalAt(now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.span)
	var sum int64
	for i := range w.slots {
		if !w.slots[i].start.IsZero() && w.slots[i].start.After(cutoff) {
			sum += w.slots[i].n
		}
	}
	return sum
}

// Reset discards all recorded events.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.slots {
		w.slots[i] = slotCount{}
	}
}

// Span returns the window duration.
func (w *Window) Span() time.Duration {
	return w.span
}
