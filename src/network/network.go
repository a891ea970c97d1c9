package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quant-observer/src/helpers"
	"quant-observer/src/logger"
	"quant-observer/src/models"
)

// AsyncNetworkManager performs HTTP GETs with a timeout and exponential
// backoff between attempts.
type AsyncNetworkManager struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg models.MNetworkConfig, log *logger.Logger) *AsyncNetworkManager {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AsyncNetworkManager{
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: time.Second,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// StatusError is a non-200 answer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("blocked (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("bad status: %d", e.StatusCode)
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries. MaxRetries counts the extra
// attempts after the first one.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	attempts := nm.MaxRetries + 1
	body, err := helpers.RetryWithBackoff(ctx, attempts, nm.RetryDelay, func() ([]byte, error) {
		return nm.do(ctx, finalURL)
	}, func(attempt int, err error, delay time.Duration) {
		nm.Logger.Info("Request failed (attempt %d/%d): %v, retrying in %v", attempt, attempts, err, delay)
	})
	if err != nil {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("GET %s: max retries exceeded", reqURL.Path), err)
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, err
	}
	if nm.UserAgent != "" {
		req.Header.Set("User-Agent", nm.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}
