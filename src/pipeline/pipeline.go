package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/alerts"
	"quant-observer/src/analysis"
	"quant-observer/src/config"
	"quant-observer/src/helpers"
	"quant-observer/src/ingest"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"
)

// Observer receives the result of every processed tick.
type Observer func(models.MProcessResult)

type sourceRef struct{ src interfaces.IDataSource }

// -----------------------------------------------------------------------------
// Pipeline runs append -> compute -> evaluate for each tick, in order.
// The runtime configuration is swapped atomically and read once per tick,
// so a change applies from the next tick on.
// -----------------------------------------------------------------------------

type Pipeline struct {
	mu       sync.Mutex
	buffer   *ingest.TickBuffer
	analysis *analysis.AnalysisFacade
	alerts   *alerts.AlertEngine
	cfg      atomic.Pointer[models.MPipelineConfig]

	obsMu     sync.RWMutex
	observers []Observer

	processed  atomic.Int64
	rejected   atomic.Int64
	lastUpdate atomic.Int64
	source     atomic.Pointer[sourceRef]
	now        func() time.Time

	Metrics *monitoring.Metrics
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPipeline(cfg models.MPipelineConfig, metrics *monitoring.Metrics, log *logger.Logger) (*Pipeline, error) {
	if err := config.ValidatePipeline(cfg); err != nil {
		return nil, err
	}

	p := &Pipeline{
		buffer:   ingest.NewTickBuffer(cfg.Analytics.BufferCapacity),
		analysis: analysis.NewAnalysisFacade(log.Named("Analysis")),
		alerts:   alerts.NewAlertEngine(cfg.Alerts.LogCapacity, log.Named("AlertEngine")),
		now:      time.Now,
		Metrics:  metrics,
		Logger:   log,
	}
	p.cfg.Store(&cfg)

	if metrics != nil {
		p.alerts.OnCallbackError(func(*helpers.CallbackError) {
			metrics.CallbackFailures.Inc()
		})
	}
	return p, nil
}

// -----------------------------------------------------------------------------

// ProcessTick appends the tick, recomputes the metrics from a fresh snapshot
// and evaluates the alert rules. A rejected tick returns the validation
// error and changes nothing. Alert callbacks run after the pipeline lock is
// released, so they may call UpdateConfig, Seed or ProcessTick.
func (p *Pipeline) ProcessTick(tick models.MTick) (models.MProcessResult, error) {
	start := time.Now()

	p.mu.Lock()
	cfg := *p.cfg.Load()

	if err := p.buffer.Append(tick); err != nil {
		p.mu.Unlock()
		p.rejected.Add(1)
		if p.Metrics != nil {
			p.Metrics.TicksRejected.Inc()
		}
		return models.MProcessResult{}, err
	}

	summary := p.analysis.ComputeMetrics(p.buffer.Snapshot(), cfg.Analytics)
	raised := p.alerts.Check(summary, cfg.Alerts)
	bufferLen := p.buffer.Len()
	p.mu.Unlock()

	p.alerts.Dispatch(raised)

	result := models.MProcessResult{
		Tick:    tick,
		Metrics: summary,
		Alerts:  raised,
		ProcessingMetrics: models.MProcessingMetrics{
			ProcessingTimeSeconds: time.Since(start).Seconds(),
			SampleCount:           summary.SampleCount,
			AlertsRaised:          len(raised),
		},
	}

	p.processed.Add(1)
	p.lastUpdate.Store(time.Now().UnixMilli())
	if p.Metrics != nil {
		p.Metrics.ObserveTick(result, bufferLen)
	}

	p.obsMu.RLock()
	observers := p.observers
	p.obsMu.RUnlock()
	for _, obs := range observers {
		obs(result)
	}

	return result, nil
}

// -----------------------------------------------------------------------------

// Seed appends historical ticks without evaluating alerts. It returns how
// many were accepted.
func (p *Pipeline) Seed(ticks []models.MTick) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	accepted := 0
	for _, t := range ticks {
		if err := p.buffer.Append(t); err != nil {
			p.rejected.Add(1)
			p.Logger.Debug("Skipping warm-up tick: %v", err)
			continue
		}
		accepted++
	}
	if p.Metrics != nil {
		p.Metrics.BufferSize.Set(float64(p.buffer.Len()))
	}
	return accepted
}

// -----------------------------------------------------------------------------

// UpdateConfig validates and installs a new runtime configuration. Buffer and
// alert log are resized when their capacities change.
func (p *Pipeline) UpdateConfig(cfg models.MPipelineConfig) error {
	if err := config.ValidatePipeline(cfg); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.cfg.Load()
	if cfg.Analytics.BufferCapacity != old.Analytics.BufferCapacity {
		p.buffer.Resize(cfg.Analytics.BufferCapacity)
		p.Logger.Info("Buffer capacity changed %d -> %d", old.Analytics.BufferCapacity, cfg.Analytics.BufferCapacity)
	}
	if cfg.Alerts.LogCapacity != old.Alerts.LogCapacity {
		p.alerts.ResizeLog(cfg.Alerts.LogCapacity)
	}

	p.cfg.Store(&cfg)
	p.Logger.Info("Pipeline config updated: windows %d/%d/%d/%d thresholds %.4f/%.4f/%.4f",
		cfg.Analytics.ShortMAWindow, cfg.Analytics.LongMAWindow, cfg.Analytics.EMAWindow, cfg.Analytics.VolatilityWindow,
		cfg.Alerts.Thresholds.PriceChangePct, cfg.Alerts.Thresholds.VolatilityWarning, cfg.Alerts.Thresholds.VolatilityCritical)
	return nil
}

// Config returns a copy of the current runtime configuration.
func (p *Pipeline) Config() models.MPipelineConfig {
	return *p.cfg.Load()
}

// -----------------------------------------------------------------------------

// AddObserver registers a function called after every processed tick.
func (p *Pipeline) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, obs)
}

// RegisterAlertCallback forwards to the alert engine.
func (p *Pipeline) RegisterAlertCallback(fn alerts.AlertCallback) {
	p.alerts.RegisterCallback(fn)
}

// SetSource records the tick source reported by Stats. Its name and
// real-time flag are read on every call, so a fallback shows up at once.
func (p *Pipeline) SetSource(src interfaces.IDataSource) {
	if src == nil {
		p.source.Store(nil)
		return
	}
	p.source.Store(&sourceRef{src: src})
}
