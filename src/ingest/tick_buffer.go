package ingest

import (
	"math"
	"strings"
	"sync"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/models"
	"quant-observer/src/utils"
)

// -----------------------------------------------------------------------------
// TickBuffer is the bounded, insertion-ordered tick history. Writers and
// readers may run on different goroutines: every query returns a copy, so a
// caller never sees the buffer change underneath it.
// -----------------------------------------------------------------------------

type TickBuffer struct {
	mu  sync.RWMutex
	buf *utils.RingBuffer[models.MTick]
}

func NewTickBuffer(capacity int) *TickBuffer {
	return &TickBuffer{
		buf: utils.NewRingBuffer[models.MTick](capacity),
	}
}

// -----------------------------------------------------------------------------

// ValidateTick reports the first problem with a tick, or nil.
func ValidateTick(t models.MTick) error {
	switch {
	case strings.TrimSpace(t.Symbol) == "":
		return helpers.NewValidationError("symbol", "tick symbol is required")
	case t.Timestamp.IsZero():
		return helpers.NewValidationError("timestamp", "tick timestamp is required")
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0):
		return helpers.NewValidationError("price", "tick price must be finite, got %v", t.Price)
	case t.Price <= 0:
		return helpers.NewValidationError("price", "tick price must be positive, got %v", t.Price)
	case math.IsNaN(t.Volume) || math.IsInf(t.Volume, 0) || t.Volume < 0:
		return helpers.NewValidationError("volume", "tick volume must be a non-negative number, got %v", t.Volume)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Append stores the tick at the end, evicting the oldest one when full.
// A rejected tick leaves the buffer untouched. Ticks are never re-sorted.
func (b *TickBuffer) Append(t models.MTick) error {
	if err := ValidateTick(t); err != nil {
		return err
	}

	b.mu.Lock()
	b.buf.Append(t)
	b.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

// Snapshot returns a point-in-time copy, oldest to newest.
func (b *TickBuffer) Snapshot() []models.MTick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.GetAll()
}

// LatestN returns up to n newest ticks, oldest first.
func (b *TickBuffer) LatestN(n int) []models.MTick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.GetLatest(n)
}

// Latest returns the newest tick, or false when empty.
func (b *TickBuffer) Latest() (models.MTick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.Last()
}

// -----------------------------------------------------------------------------

// Range returns the ticks with start <= timestamp <= end in insertion order.
func (b *TickBuffer) Range(start, end time.Time) []models.MTick {
	out := []models.MTick{}
	if start.After(end) {
		return out
	}

	for _, t := range b.Snapshot() {
		if !t.Timestamp.Before(start) && !t.Timestamp.After(end) {
			out = append(out, t)
		}
	}
	return out
}

// Since returns the ticks stamped at or after cutoff, in insertion order.
func (b *TickBuffer) Since(cutoff time.Time) []models.MTick {
	out := []models.MTick{}
	for _, t := range b.Snapshot() {
		if !t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// PriceRange returns the min and max price held, or ok=false when empty.
func (b *TickBuffer) PriceRange() (min, max float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.buf.Size() == 0 {
		return 0, 0, false
	}

	min, max = math.Inf(1), math.Inf(-1)
	for _, t := range b.buf.GetAll() {
		min = math.Min(min, t.Price)
		max = math.Max(max, t.Price)
	}
	return min, max, true
}

// -----------------------------------------------------------------------------

func (b *TickBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.Size()
}

func (b *TickBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.Capacity()
}

// Resize changes the capacity, keeping the newest ticks.
func (b *TickBuffer) Resize(capacity int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Resize(capacity)
}

func (b *TickBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Clear()
}
