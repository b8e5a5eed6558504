package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const maxAttempts = 3

// statusError is a non-2xx response from a provider API.
type statusError struct {
	Provider string
	Status   int
	Message  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, e.Message)
}

// retryable reports whether the status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// backoff returns the delay before the attempt following attempt.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 500 * time.Millisecond
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// postJSON posts body to url and decodes a 2xx response into out. Timeouts,
// 408, 429 and 5xx responses are retried with exponential backoff. Context
// window errors are reported as ErrContextLimit.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", provider, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("building %s request: %w", provider, err)
		}
		req.Header.Set("content-type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		res, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s request: %w", provider, err)
			if isTimeout(err) && ctx.Err() == nil {
				continue
			}
			return lastErr
		}

		data, readErr := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading %s response: %w", provider, readErr)
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", provider, err)
			}
			return nil
		}

		serr := &statusError{Provider: provider, Status: res.StatusCode, Message: errorMessage(data)}
		if isContextLimitMessage(serr.Message) {
			return fmt.Errorf("%w: %s", ErrContextLimit, serr.Message)
		}
		lastErr = serr
		if !retryable(res.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}

// errorMessage pulls the human-readable message out of a provider error
// body, falling back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		}
		if err := json.Unmarshal(body.Error, &detail); err == nil && detail.Message != "" {
			if code, ok := detail.Code.(string); ok && code != "" {
				return code + ": " + detail.Message
			}
			return detail.Message
		}
		var plain string
		if err := json.Unmarshal(body.Error, &plain); err == nil {
			return plain
		}
	}
	return string(bytes.TrimSpace(data))
}
