package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/semantica-dev/semantica/internal/errors"
)

// Retry policy shared by all providers.
const (
	maxAttempts  = 3
	retryBackoff = time.Second
	backoffGrow  = 2
)

// withRetry runs fn up to maxAttempts times with exponential backoff.
// Fatal errors (auth, model unavailable) stop immediately; retryable
// errors (network, 5xx, 429) back off and try again.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	delay := retryBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) || attempt == maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= backoffGrow
	}
	return err
}

// classifyHTTPError maps a non-2xx response to an error kind. 401 is a
// fatal auth error; a 404 naming the model means the model itself is
// missing; 429 and 5xx are retryable; anything else is a plain
// embedding error.
func classifyHTTPError(resp *http.Response, model string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.KindAuth, "embedding API rejected credentials")
	case resp.StatusCode == http.StatusNotFound && mentionsModel(msg, resp.Request, model):
		return errors.Newf(errors.KindModelUnavailable, "model not available: %s", model)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &errors.Error{
			Kind:      errors.KindEmbedding,
			Message:   fmt.Sprintf("embedding request failed with status %d: %s", resp.StatusCode, msg),
			Retryable: true,
		}
	default:
		return errors.Newf(errors.KindEmbedding, "embedding request failed with status %d: %s", resp.StatusCode, msg)
	}
}

func mentionsModel(body string, req *http.Request, model string) bool {
	if strings.Contains(strings.ToLower(body), "model") {
		return true
	}
	if model != "" && strings.Contains(body, model) {
		return true
	}
	return req != nil && strings.Contains(req.URL.Path, "embed")
}

// networkError wraps a transport-level failure as retryable.
func networkError(err error, action string) error {
	return &errors.Error{
		Kind:      errors.KindEmbedding,
		Message:   action,
		Cause:     err,
		Retryable: true,
	}
}
