package ingest

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func tickAt(i int, price float64) models.MTick {
	return models.MTick{
		Symbol:    "BTC/USD",
		Price:     price,
		Volume:    10,
		Timestamp: t0.Add(time.Duration(i) * time.Second),
	}
}

func TestTickBufferCapacityInvariantAndFIFO(t *testing.T) {
	const capacity = 5
	b := NewTickBuffer(capacity)

	for i := 0; i < 23; i++ {
		require.NoError(t, b.Append(tickAt(i, float64(100+i))))
		assert.LessOrEqual(t, b.Len(), capacity)
	}

	snap := b.Snapshot()
	require.Len(t, snap, capacity)
	for i, tick := range snap {
		assert.Equal(t, float64(100+18+i), tick.Price, "oldest ticks must be evicted first")
	}
}

func TestTickBufferEmptyQueries(t *testing.T) {
	b := NewTickBuffer(3)

	assert.Empty(t, b.Snapshot())
	assert.Empty(t, b.LatestN(10))
	assert.Empty(t, b.Range(t0, t0.Add(time.Hour)))

	_, ok := b.Latest()
	assert.False(t, ok)

	_, _, ok = b.PriceRange()
	assert.False(t, ok)
}

func TestTickBufferRejectsMalformedTicks(t *testing.T) {
	b := NewTickBuffer(3)
	require.NoError(t, b.Append(tickAt(0, 100)))

	bad := map[string]models.MTick{
		"price":     tickAt(1, -1),
		"volume":    {Symbol: "BTC/USD", Price: 1, Volume: -5, Timestamp: t0},
		"symbol":    {Price: 1, Timestamp: t0},
		"timestamp": {Symbol: "BTC/USD", Price: 1},
	}
	for field, tick := range bad {
		err := b.Append(tick)
		var valErr *helpers.ValidationError
		require.True(t, errors.As(err, &valErr), "field %s", field)
		assert.Equal(t, field, valErr.Field)
	}

	for _, p := range []float64{0, math.NaN(), math.Inf(1)} {
		assert.Error(t, b.Append(tickAt(2, p)))
	}

	assert.Equal(t, 1, b.Len(), "rejected ticks must not change the buffer")
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 100.0, latest.Price)
}

func TestTickBufferRangeIsInclusive(t *testing.T) {
	b := NewTickBuffer(10)
	for i := 0; i < 6; i++ {
		require.NoError(t, b.Append(tickAt(i, float64(i+1))))
	}

	got := b.Range(t0.Add(1*time.Second), t0.Add(3*time.Second))
	require.Len(t, got, 3)
	assert.Equal(t, []float64{2, 3, 4}, []float64{got[0].Price, got[1].Price, got[2].Price})

	assert.Empty(t, b.Range(t0.Add(time.Hour), t0.Add(2*time.Hour)))
	assert.Empty(t, b.Range(t0.Add(3*time.Second), t0))
}

func TestTickBufferSinceKeepsInsertionOrder(t *testing.T) {
	b := NewTickBuffer(10)
	for _, i := range []int{0, 4, 2, 5, 1} {
		require.NoError(t, b.Append(tickAt(i, float64(i+1))))
	}

	got := b.Since(t0.Add(2 * time.Second))
	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 3, 6}, []float64{got[0].Price, got[1].Price, got[2].Price})
	assert.Empty(t, b.Since(t0.Add(time.Minute)))
}

func TestTickBufferOutOfOrderIsNotSorted(t *testing.T) {
	b := NewTickBuffer(4)
	require.NoError(t, b.Append(tickAt(5, 1)))
	require.NoError(t, b.Append(tickAt(2, 2)))

	snap := b.Snapshot()
	assert.Equal(t, 1.0, snap[0].Price)
	assert.Equal(t, 2.0, snap[1].Price)

	latest, _ := b.Latest()
	assert.Equal(t, 2.0, latest.Price, "latest is the last appended tick")
}

func TestTickBufferPriceRangeAndLatestN(t *testing.T) {
	b := NewTickBuffer(4)
	for i, p := range []float64{50, 10, 70, 30, 40} {
		require.NoError(t, b.Append(tickAt(i, p)))
	}

	lo, hi, ok := b.PriceRange()
	require.True(t, ok)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 70.0, hi)

	last2 := b.LatestN(2)
	require.Len(t, last2, 2)
	assert.Equal(t, 30.0, last2[0].Price)
	assert.Equal(t, 40.0, last2[1].Price)
}

func TestTickBufferSnapshotIsACopy(t *testing.T) {
	b := NewTickBuffer(3)
	require.NoError(t, b.Append(tickAt(0, 100)))

	snap := b.Snapshot()
	snap[0].Price = 1

	latest, _ := b.Latest()
	assert.Equal(t, 100.0, latest.Price)
}

func TestTickBufferResizeAndClear(t *testing.T) {
	b := NewTickBuffer(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Append(tickAt(i, float64(i+1))))
	}

	b.Resize(2)
	assert.Equal(t, 2, b.Capacity())
	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 4.0, snap[0].Price)

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 2, b.Capacity())
}

func TestTickBufferConcurrentSnapshot(t *testing.T) {
	const capacity = 64
	b := NewTickBuffer(capacity)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			_ = b.Append(tickAt(i, float64(i+1)))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := b.Snapshot()
			assert.LessOrEqual(t, len(snap), capacity)
			for j := 1; j < len(snap); j++ {
				// appends are monotonic, so any consistent snapshot is strictly increasing
				assert.Less(t, snap[j-1].Price, snap[j].Price)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, capacity, b.Len())
}
