package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/utils"

	"github.com/shopspring/decimal"
)

const (
	stepStdDev = 50.0
	priceFloor = 100.0
	minVolume  = 10.0
	maxVolume  = 500.0
)

// MockSource emits a gaussian random walk at a fixed interval.
type MockSource struct {
	Symbol   string
	Interval time.Duration
	Logger   *logger.Logger

	rng        *rand.Rand
	price      float64
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewMockSource(cfg models.MDataSourceConfig, log *logger.Logger) *MockSource {
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = utils.DefaultIntervalMs * time.Millisecond
	}
	start := cfg.StartPrice
	if start <= 0 {
		start = utils.DefaultStartPrice
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = utils.DefaultSymbol
	}

	now := uint64(time.Now().UnixNano())
	return &MockSource{
		Symbol:   symbol,
		Interval: interval,
		Logger:   log,
		rng:      rand.New(rand.NewPCG(now, now>>1)),
		price:    start,
	}
}

// WithSeed makes the walk reproducible.
func (s *MockSource) WithSeed(seed uint64) *MockSource {
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

// -----------------------------------------------------------------------------

func (s *MockSource) Name() string {
	return "mock"
}

// IsRealTime returns false because the prices are simulated
func (s *MockSource) IsRealTime() bool {
	return false
}

// -----------------------------------------------------------------------------

// Next advances the walk by one step and returns the new tick.
func (s *MockSource) Next(at time.Time) models.MTick {
	s.price += s.rng.NormFloat64() * stepStdDev
	if s.price < priceFloor {
		s.price = priceFloor
	}
	volume := minVolume + s.rng.Float64()*(maxVolume-minVolume)

	return models.MTick{
		Symbol:    s.Symbol,
		Price:     round2(s.price),
		Volume:    round2(volume),
		Timestamp: at,
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// -----------------------------------------------------------------------------

func (s *MockSource) Start(parentCtx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, out, wg)
	s.Logger.Info("Started MockSource for %s every %v", s.Symbol, s.Interval)
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped MockSource")
	return nil
}

// -----------------------------------------------------------------------------

func (s *MockSource) runLoop(ctx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.isRunning.Store(false)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			select {
			case out <- s.Next(now):
			case <-ctx.Done():
				return
			}
		}
	}
}
