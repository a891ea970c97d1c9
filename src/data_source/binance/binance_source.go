package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/utils"

	"github.com/gorilla/websocket"
)

const readTimeout = 30 * time.Second

// BinanceSource relays the public trade stream of one pair. When the stream
// can not be reached MaxRetries times in a row it hands over to Fallback.
type BinanceSource struct {
	Symbol        string
	URL           string
	MinInterval   time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	FallbackDelay time.Duration
	Fallback      func() interfaces.IDataSource
	Dialer        *websocket.Dialer
	Logger        *logger.Logger

	fellBack   atomic.Bool
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewBinanceSource(cfg models.MDataSourceConfig, netCfg models.MNetworkConfig, log *logger.Logger) *BinanceSource {
	base := cfg.WSURL
	if base == "" {
		base = utils.BinanceWSURL
	}
	retries := netCfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &BinanceSource{
		Symbol:        cfg.Symbol,
		URL:           strings.TrimRight(base, "/") + "/" + StreamSymbol(cfg.Symbol) + "@trade",
		MinInterval:   time.Duration(cfg.IntervalMs) * time.Millisecond,
		MaxRetries:    retries,
		RetryDelay:    time.Second,
		FallbackDelay: utils.MockFallbackDelay,
		Dialer:        websocket.DefaultDialer,
		Logger:        log,
	}
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) Name() string {
	return "binance"
}

// IsRealTime is true until the source falls back to simulated prices.
func (s *BinanceSource) IsRealTime() bool {
	return !s.fellBack.Load()
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) Start(parentCtx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) error {
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
	s.Logger.Info("Started BinanceSource on %s", s.URL)
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *BinanceSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped BinanceSource")
	return nil
}

// -----------------------------------------------------------------------------

// runLoop connects, streams until the connection drops, and reconnects.
// Only consecutive failed dials count towards the fallback.
func (s *BinanceSource) runLoop(ctx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) {
	defer wg.Done()

	for ctx.Err() == nil {
		conn, err := helpers.RetryWithBackoff(ctx, s.MaxRetries, s.RetryDelay, func() (*websocket.Conn, error) {
			c, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
			return c, err
		}, func(attempt int, err error, delay time.Duration) {
			s.Logger.Warning("Connection to %s failed (attempt %d/%d): %v, retrying in %v", s.URL, attempt, s.MaxRetries, err, delay)
		})

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.Logger.Error("Giving up on %s: %v", s.URL, err)
			s.fallBack(ctx, out, wg)
			return
		}

		s.Logger.Info("Connected to %s", s.URL)
		if err := s.stream(ctx, conn, out); err != nil && ctx.Err() == nil {
			s.Logger.Warning("Stream interrupted: %v, reconnecting", err)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) stream(ctx context.Context, conn *websocket.Conn, out chan<- models.MTick) error {
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var lastSent time.Time
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		tick, err := parseTrade(data, s.Symbol)
		if err != nil {
			s.Logger.Debug("Skipping message: %v", err)
			continue
		}

		if s.MinInterval > 0 && !lastSent.IsZero() && time.Since(lastSent) < s.MinInterval {
			continue
		}

		select {
		case out <- tick:
			lastSent = time.Now()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) fallBack(ctx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) {
	if s.Fallback == nil {
		return
	}

	select {
	case <-time.After(s.FallbackDelay):
	case <-ctx.Done():
		return
	}

	fb := s.Fallback()
	s.fellBack.Store(true)
	s.Logger.Warning("Falling back to %s data", fb.Name())
	if err := fb.Start(ctx, out, wg); err != nil {
		s.Logger.Error("Fallback source failed to start: %v", err)
	}
}
