package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"
)

const (
	journalQueueSize       = 4096
	defaultCleanupInterval = time.Hour
)

// -----------------------------------------------------------------------------
// JournalWriter moves journal I/O off the tick path. Ticks are batched and
// flushed by size or interval; alerts are written as they arrive. When a
// queue is full the record is dropped and counted, never blocking callers.
// -----------------------------------------------------------------------------

type JournalWriter struct {
	DB              interfaces.IDatabase
	BatchSize       int
	FlushInterval   time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
	Errors          *helpers.ErrorHandler
	Metrics         *monitoring.Metrics
	Logger          *logger.Logger

	ticks    chan models.MTick
	alerts   chan models.MAlert
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
}

// -----------------------------------------------------------------------------

func NewJournalWriter(db interfaces.IDatabase, cfg models.MStorageConfig, maxRetries int, errs *helpers.ErrorHandler, metrics *monitoring.Metrics, log *logger.Logger) *JournalWriter {
	batch := cfg.BatchSize
	if batch < 1 {
		batch = 500
	}
	flush := time.Duration(cfg.FlushIntervalSeconds) * time.Second
	if flush <= 0 {
		flush = 5 * time.Second
	}

	return &JournalWriter{
		DB:              db,
		BatchSize:       batch,
		FlushInterval:   flush,
		CleanupInterval: defaultCleanupInterval,
		MaxRetries:      maxRetries,
		Errors:          errs,
		Metrics:         metrics,
		Logger:          log,
		ticks:           make(chan models.MTick, journalQueueSize),
		alerts:          make(chan models.MAlert, journalQueueSize/8),
		done:            make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start launches the writer goroutine. It stops when ctx is cancelled or
// Close is called, flushing whatever is queued.
func (w *JournalWriter) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Close stops the writer and waits for the final flush.
func (w *JournalWriter) Close() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

// -----------------------------------------------------------------------------

func (w *JournalWriter) EnqueueTick(t models.MTick) {
	select {
	case w.ticks <- t:
	default:
		w.dropped.Add(1)
	}
}

// EnqueueAlert matches alerts.AlertCallback so it can be registered directly.
func (w *JournalWriter) EnqueueAlert(a models.MAlert) error {
	select {
	case w.alerts <- a:
	default:
		w.dropped.Add(1)
	}
	return nil
}

// Written is the number of ticks committed to the journal.
func (w *JournalWriter) Written() int64 { return w.written.Load() }

// Dropped counts records discarded because a queue was full.
func (w *JournalWriter) Dropped() int64 { return w.dropped.Load() }

// -----------------------------------------------------------------------------

func (w *JournalWriter) run(ctx context.Context) {
	defer w.wg.Done()

	flushTicker := time.NewTicker(w.FlushInterval)
	defer flushTicker.Stop()
	cleanupTicker := time.NewTicker(w.CleanupInterval)
	defer cleanupTicker.Stop()

	batch := make([]models.MTick, 0, w.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		w.saveTicks(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case t := <-w.ticks:
			batch = append(batch, t)
			if len(batch) >= w.BatchSize {
				flush(ctx)
			}

		case a := <-w.alerts:
			w.saveAlert(ctx, a)

		case <-flushTicker.C:
			flush(ctx)

		case <-cleanupTicker.C:
			if err := w.DB.CleanupOldData(); err != nil {
				w.fail(err, "journal cleanup")
			}

		case <-ctx.Done():
			w.drain(&batch)
			flush(context.Background())
			return

		case <-w.done:
			w.drain(&batch)
			flush(context.Background())
			return
		}
	}
}

// drain empties both queues without blocking.
func (w *JournalWriter) drain(batch *[]models.MTick) {
	for {
		select {
		case t := <-w.ticks:
			*batch = append(*batch, t)
		case a := <-w.alerts:
			w.saveAlert(context.Background(), a)
		default:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (w *JournalWriter) saveTicks(ctx context.Context, ticks []models.MTick) {
	err := w.Errors.ExecuteWithRetry(ctx, "save ticks to journal", w.MaxRetries, func() error {
		return w.DB.SaveTicksBulk(ticks)
	})
	if err != nil {
		w.fail(err, "")
		return
	}
	w.written.Add(int64(len(ticks)))
	w.Logger.Debug("Journaled %d ticks", len(ticks))
}

func (w *JournalWriter) saveAlert(ctx context.Context, a models.MAlert) {
	err := w.Errors.ExecuteWithRetry(ctx, "save alert to journal", w.MaxRetries, func() error {
		return w.DB.SaveAlert(a)
	})
	if err != nil {
		w.fail(err, "")
	}
}

// fail counts a journal error. ExecuteWithRetry already logged it when where
// is empty.
func (w *JournalWriter) fail(err error, where string) {
	if where != "" {
		w.Errors.Handle(err, where)
	}
	if w.Metrics != nil {
		w.Metrics.JournalErrors.Inc()
	}
}
