package alerts

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/utils"

	"github.com/google/uuid"
)

// AlertCallback is invoked synchronously once per newly created alert.
type AlertCallback func(models.MAlert) error

type kindState struct {
	state models.AlertState
	level models.AlertLevel
	since time.Time
}

// -----------------------------------------------------------------------------
// AlertEngine compares each metrics summary against the thresholds it is
// given and raises an alert only when a kind moves from ARMED to FIRED.
// It owns the bounded alert log and the per-kind state; it never reads
// the tick buffer.
// -----------------------------------------------------------------------------

type AlertEngine struct {
	mu        sync.Mutex
	log       *utils.RingBuffer[models.MAlert]
	states    map[models.AlertKind]*kindState
	callbacks []AlertCallback
	total     atomic.Int64
	failures  atomic.Int64

	onCallbackError func(*helpers.CallbackError)
	now             func() time.Time
	Logger          *logger.Logger
}

func NewAlertEngine(logCapacity int, log *logger.Logger) *AlertEngine {
	if logCapacity <= 0 {
		logCapacity = utils.DefaultAlertLogCapacity
	}

	e := &AlertEngine{
		log:    utils.NewRingBuffer[models.MAlert](logCapacity),
		states: make(map[models.AlertKind]*kindState, len(models.AlertKinds)),
		now:    time.Now,
		Logger: log,
	}
	e.resetStates()
	return e
}

func (e *AlertEngine) resetStates() {
	now := e.now()
	for _, kind := range models.AlertKinds {
		e.states[kind] = &kindState{state: models.AlertStateArmed, since: now}
	}
}

// -----------------------------------------------------------------------------

// RegisterCallback adds a hook run for every new alert, in registration order.
func (e *AlertEngine) RegisterCallback(fn AlertCallback) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

// OnCallbackError sets a hook that observes every callback failure.
func (e *AlertEngine) OnCallbackError(fn func(*helpers.CallbackError)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCallbackError = fn
}

// -----------------------------------------------------------------------------

// Evaluate applies the rules to one summary, runs the callbacks for every
// alert it created and returns those alerts. It is Check followed by
// Dispatch.
func (e *AlertEngine) Evaluate(summary models.MMetricsSummary, cfg models.MAlertConfig) []models.MAlert {
	created := e.Check(summary, cfg)
	e.Dispatch(created)
	return created
}

// Check moves the per-kind state machines and logs the alerts they raise,
// without running any callback. Rules whose input is unavailable are
// skipped and leave their state as is.
//
//	|simple_return| > price_change_pct       => PRICE_MOVE / WARNING
//	volatility      > volatility_critical    => VOLATILITY / CRITICAL
//	volatility      > volatility_warning     => VOLATILITY / WARNING
//
// A kind already FIRED stays silent while the breach persists, whatever its
// level does. Recovery re-arms the kind; with cfg.EmitResolved an INFO
// notice marked Resolved is raised as well.
func (e *AlertEngine) Check(summary models.MMetricsSummary, cfg models.MAlertConfig) []models.MAlert {
	th := cfg.Thresholds

	e.mu.Lock()
	defer e.mu.Unlock()

	created := []models.MAlert{}

	if ret, ok := summary.SimpleReturn.Get(); ok && usable(ret, th.PriceChangePct) {
		level := models.AlertLevel("")
		if math.Abs(ret) > th.PriceChangePct {
			level = models.AlertLevelWarning
		}
		if a, ok := e.transition(models.AlertKindPriceMove, level, ret, th.PriceChangePct, summary, cfg.EmitResolved); ok {
			created = append(created, a)
		}
	}

	if vol, ok := summary.Volatility.Get(); ok && usable(vol, th.VolatilityWarning, th.VolatilityCritical) {
		level, threshold := models.AlertLevel(""), th.VolatilityWarning
		switch {
		case vol > th.VolatilityCritical:
			level, threshold = models.AlertLevelCritical, th.VolatilityCritical
		case vol > th.VolatilityWarning:
			level = models.AlertLevelWarning
		}
		if a, ok := e.transition(models.AlertKindVolatility, level, vol, threshold, summary, cfg.EmitResolved); ok {
			created = append(created, a)
		}
	}

	for _, a := range created {
		e.log.Append(a)
		e.total.Add(1)
	}
	return created
}

// Dispatch runs every registered callback once per alert, in registration
// order. No engine lock is held, so a callback may call back into the
// engine or into whatever owns it.
func (e *AlertEngine) Dispatch(created []models.MAlert) {
	if len(created) == 0 {
		return
	}

	e.mu.Lock()
	callbacks := append([]AlertCallback(nil), e.callbacks...)
	onErr := e.onCallbackError
	e.mu.Unlock()

	for _, a := range created {
		e.dispatch(a, callbacks, onErr)
	}
}

// usable rejects NaN or infinite operands so none reaches a comparison.
func usable(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// transition moves one kind's state machine. An empty level means the value
// is within thresholds. The caller holds e.mu.
func (e *AlertEngine) transition(
	kind models.AlertKind,
	level models.AlertLevel,
	observed, threshold float64,
	summary models.MMetricsSummary,
	emitResolved bool,
) (models.MAlert, bool) {
	st := e.states[kind]
	now := e.now()

	switch {
	case level == "" && st.state == models.AlertStateFired:
		st.state, st.level, st.since = models.AlertStateArmed, "", now
		if !emitResolved {
			return models.MAlert{}, false
		}
		return e.newAlert(kind, models.AlertLevelInfo, observed, threshold, summary, now, true), true

	case level == "":
		return models.MAlert{}, false

	case st.state == models.AlertStateArmed:
		st.state, st.level, st.since = models.AlertStateFired, level, now
		return e.newAlert(kind, level, observed, threshold, summary, now, false), true
	}

	return models.MAlert{}, false
}

// -----------------------------------------------------------------------------

func (e *AlertEngine) newAlert(
	kind models.AlertKind,
	level models.AlertLevel,
	observed, threshold float64,
	summary models.MMetricsSummary,
	at time.Time,
	resolved bool,
) models.MAlert {
	return models.MAlert{
		ID:            uuid.NewString(),
		Level:         level,
		Kind:          kind,
		Symbol:        summary.Symbol,
		Message:       alertMessage(kind, level, observed, threshold, resolved),
		ObservedValue: observed,
		Threshold:     threshold,
		Timestamp:     at,
		Resolved:      resolved,
	}
}

func alertMessage(kind models.AlertKind, level models.AlertLevel, observed, threshold float64, resolved bool) string {
	switch kind {
	case models.AlertKindPriceMove:
		if resolved {
			return fmt.Sprintf("Price move back within %.2f%% (last %.2f%%)", threshold*100, observed*100)
		}
		direction := "increased"
		if observed < 0 {
			direction = "decreased"
		}
		return fmt.Sprintf("Price %s by %.2f%% (threshold %.2f%%)", direction, math.Abs(observed)*100, threshold*100)
	default:
		if resolved {
			return fmt.Sprintf("Volatility back within threshold: %.4f <= %.4f", observed, threshold)
		}
		if level == models.AlertLevelCritical {
			return fmt.Sprintf("Critical volatility: %.4f (threshold %.4f)", observed, threshold)
		}
		return fmt.Sprintf("High volatility: %.4f (threshold %.4f)", observed, threshold)
	}
}

// -----------------------------------------------------------------------------

func (e *AlertEngine) dispatch(a models.MAlert, callbacks []AlertCallback, onErr func(*helpers.CallbackError)) {
	for i, cb := range callbacks {
		if err := runCallback(cb, a); err != nil {
			cbErr := helpers.NewCallbackError(i, a.ID, err)
			e.failures.Add(1)
			if e.Logger != nil {
				e.Logger.Warning("%v", cbErr)
			}
			if onErr != nil {
				onErr(cbErr)
			}
		}
	}
}

func runCallback(cb AlertCallback, a models.MAlert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cb(a)
}

// -----------------------------------------------------------------------------

// RecentAlerts returns up to n alerts, newest first. The log is not modified.
func (e *AlertEngine) RecentAlerts(n int) []models.MAlert {
	e.mu.Lock()
	latest := e.log.GetLatest(n)
	e.mu.Unlock()

	for i, j := 0, len(latest)-1; i < j; i, j = i+1, j-1 {
		latest[i], latest[j] = latest[j], latest[i]
	}
	return latest
}

// AllAlerts returns the retained log, oldest first.
func (e *AlertEngine) AllAlerts() []models.MAlert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.GetAll()
}

// ClearAlerts empties the log and re-arms every kind.
func (e *AlertEngine) ClearAlerts() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Clear()
	e.resetStates()
}

// ResizeLog changes the log capacity, dropping the oldest alerts if needed.
func (e *AlertEngine) ResizeLog(capacity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Resize(capacity)
}

// -----------------------------------------------------------------------------

// Count is the number of alerts created over the engine's lifetime.
func (e *AlertEngine) Count() int64 {
	return e.total.Load()
}

// CallbackFailures is the number of failed callback invocations.
func (e *AlertEngine) CallbackFailures() int64 {
	return e.failures.Load()
}

// Retained is the number of alerts currently in the log.
func (e *AlertEngine) Retained() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Size()
}

func (e *AlertEngine) LogCapacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Capacity()
}

// States reports the state machine of every kind.
func (e *AlertEngine) States() []models.MAlertState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.MAlertState, 0, len(models.AlertKinds))
	for _, kind := range models.AlertKinds {
		st := e.states[kind]
		out = append(out, models.MAlertState{
			Kind:  kind,
			State: st.state,
			Level: st.level,
			Since: st.since,
		})
	}
	return out
}
