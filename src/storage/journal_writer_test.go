package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	NopDB
	mu      sync.Mutex
	batches [][]models.MTick
	alerts  []models.MAlert
	failAll bool
}

func (d *recordingDB) SaveTicksBulk(ticks []models.MTick) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return errors.New("disk full")
	}
	d.batches = append(d.batches, append([]models.MTick(nil), ticks...))
	return nil
}

func (d *recordingDB) SaveAlert(a models.MAlert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return errors.New("disk full")
	}
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *recordingDB) batchSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	sizes := make([]int, len(d.batches))
	for i, b := range d.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func newTestWriter(t *testing.T, db *recordingDB, batch int) (*JournalWriter, *monitoring.Metrics) {
	t.Helper()
	log := logger.NewTestLogger(t, "Journal")
	m := monitoring.NewMetrics()
	w := NewJournalWriter(db, models.MStorageConfig{BatchSize: batch, FlushIntervalSeconds: 3600}, 1, helpers.NewErrorHandler(log), m, log)
	return w, m
}

// -----------------------------------------------------------------------------

func TestJournalWriterFlushesBySize(t *testing.T) {
	db := &recordingDB{}
	w, _ := newTestWriter(t, db, 3)
	w.Start(context.Background())

	for i := 0; i < 4; i++ {
		w.EnqueueTick(models.MTick{Symbol: "BTC/USD", Price: float64(100 + i), Timestamp: time.Now()})
	}
	assert.Eventually(t, func() bool { return len(db.batchSizes()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3}, db.batchSizes())

	w.Close()
	assert.Equal(t, []int{3, 1}, db.batchSizes())
	assert.EqualValues(t, 4, w.Written())
}

func TestJournalWriterSavesAlerts(t *testing.T) {
	db := &recordingDB{}
	w, _ := newTestWriter(t, db, 10)
	w.Start(context.Background())

	require.NoError(t, w.EnqueueAlert(models.MAlert{ID: "a-1"}))
	w.Close()

	require.Len(t, db.alerts, 1)
	assert.Equal(t, "a-1", db.alerts[0].ID)
}

func TestJournalWriterFlushesOnCancel(t *testing.T) {
	db := &recordingDB{}
	w, _ := newTestWriter(t, db, 10)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	w.EnqueueTick(models.MTick{Symbol: "BTC/USD", Price: 1, Timestamp: time.Now()})
	cancel()
	w.Close()
	assert.Equal(t, []int{1}, db.batchSizes())
}

func TestJournalWriterCountsFailures(t *testing.T) {
	db := &recordingDB{failAll: true}
	w, m := newTestWriter(t, db, 1)
	w.Start(context.Background())

	w.EnqueueTick(models.MTick{Symbol: "BTC/USD", Price: 1, Timestamp: time.Now()})
	require.NoError(t, w.EnqueueAlert(models.MAlert{ID: "x"}))
	w.Close()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JournalErrors))
	assert.EqualValues(t, 2, w.Errors.ErrorCount())
	assert.Zero(t, w.Written())
}

func TestJournalWriterDropsWhenFull(t *testing.T) {
	db := &recordingDB{}
	w, _ := newTestWriter(t, db, 10)

	// not started, so nothing drains the queue
	for i := 0; i < journalQueueSize+5; i++ {
		w.EnqueueTick(models.MTick{Price: 1})
	}
	assert.EqualValues(t, 5, w.Dropped())
}
