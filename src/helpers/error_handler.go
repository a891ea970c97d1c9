package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"quant-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// ValidationError rejects malformed input (a tick or a config change).
// The rejected value never reaches the buffer or the live config.
type ValidationError struct {
	ObserverError
	Field string
}

// InsufficientDataError reports that a query needs more history than is
// retained. Analytics never returns it; it reports unavailable metrics instead.
type InsufficientDataError struct {
	ObserverError
	Required  int
	Available int
}

// CallbackError wraps a failing alert hook. It is logged and counted only.
type CallbackError struct {
	ObserverError
	Callback int
	AlertID  string
}

type ConfigurationError struct{ ObserverError }
type DataSourceError struct{ ObserverError }
type DatabaseError struct{ ObserverError }

// ErrUndefinedReturn marks a return whose predecessor price is zero or negative.
var ErrUndefinedReturn = errors.New("undefined return: predecessor price is not positive")

// -----------------------------------------------------------------------------

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		ObserverError: ObserverError{Message: fmt.Sprintf(format, args...)},
		Field:         field,
	}
}

func NewInsufficientDataError(what string, required, available int) *InsufficientDataError {
	return &InsufficientDataError{
		ObserverError: ObserverError{
			Message: fmt.Sprintf("insufficient data for %s: need %d, have %d", what, required, available),
		},
		Required:  required,
		Available: available,
	}
}

func NewCallbackError(index int, alertID string, cause error) *CallbackError {
	return &CallbackError{
		ObserverError: ObserverError{
			Message: fmt.Sprintf("alert callback #%d failed for alert %s", index, alertID),
			Cause:   cause,
		},
		Callback: index,
		AlertID:  alertID,
	}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{ObserverError{Message: message, Cause: cause}}
}

func NewDataSourceError(message string, cause error) *DataSourceError {
	return &DataSourceError{ObserverError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{ObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling baseDelay after
// each failure. It stops early when ctx is cancelled.
func RetryWithBackoff[T any](
	ctx context.Context,
	maxRetries int,
	baseDelay time.Duration,
	fn func() (T, error),
	onRetry func(attempt int, err error, delay time.Duration),
) (T, error) {
	var zero T
	var lastErr error

	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if onRetry != nil {
			onRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs errors from background work and keeps a running count
// so the health endpoint can report a degraded state.
type ErrorHandler struct {
	Logger     *logger.Logger
	errorCount atomic.Int64
	MaxErrors  int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:    log,
		MaxErrors: 10,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.errorCount.Store(0)
}

func (e *ErrorHandler) ErrorCount() int64 {
	return e.errorCount.Load()
}

// Degraded reports whether recent failures crossed MaxErrors.
func (e *ErrorHandler) Degraded() bool {
	return e.errorCount.Load() >= e.MaxErrors
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn with backoff and wraps the final failure into a
// typed error picked from the operation name.
func (e *ErrorHandler) ExecuteWithRetry(ctx context.Context, operation string, maxRetries int, fn func() error) error {
	_, err := RetryWithBackoff(ctx, maxRetries, time.Second, func() (struct{}, error) {
		return struct{}{}, fn()
	}, func(attempt int, err error, delay time.Duration) {
		e.Logger.Warning("%s failed (attempt %d/%d): %v, retrying in %v", operation, attempt, maxRetries, err, delay)
	})

	if err == nil {
		// Success: Recover stats
		if e.errorCount.Load() > 0 {
			e.errorCount.Add(-1)
		}
		return nil
	}

	e.errorCount.Add(1)
	e.Logger.Error("%s failed after %d attempts: %v", operation, maxRetries, err)
	return classify(operation, err)
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, where string) {
	if err == nil {
		return
	}
	e.errorCount.Add(1)

	var cbErr *CallbackError
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		e.Logger.Warning("Rejected input in %s (%s): %v", where, valErr.Field, err)
	case errors.As(err, &cbErr):
		e.Logger.Warning("Callback failure in %s: %v", where, err)
	default:
		e.Logger.Error("Error in %s: %v", where, err)
	}
}

// -----------------------------------------------------------------------------

func classify(operation string, err error) error {
	msg := fmt.Sprintf("%s failed", operation)
	lowerOp := strings.ToLower(operation)
	switch {
	case strings.Contains(lowerOp, "network") || strings.Contains(lowerOp, "fetch") || strings.Contains(lowerOp, "connect"):
		return NewDataSourceError(msg, err)
	case strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save") || strings.Contains(lowerOp, "journal"):
		return NewDatabaseError(msg, err)
	default:
		return &ObserverError{Message: msg, Cause: err}
	}
}
