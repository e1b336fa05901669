package provider

import (
	"context"
	"net/http"
	"time"

	"my-history/infrastructure/logger"
)

const (
	maxFetchAttempts = 3
	retryBackoff     = 2 * time.Second
)

// doWithRetry performs an HTTP request with a bounded fixed-backoff retry.
// Only network-level failures are retried; any HTTP response, whatever its
// status, is returned to the caller as-is. Requests are rebuilt per attempt
// so bodies can be re-read.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req.WithContext(ctx))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < maxFetchAttempts {
			logger.GetLogger().WithField("attempt", attempt).WithField("error", err).Warn("Request failed, retrying")
			if err := sleepCtx(ctx, retryBackoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
