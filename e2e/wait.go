package e2e

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

const defaultPollInterval = 100 * time.Millisecond

// waitUntil calls check every interval until it returns nil, ctx ends, or
// timeout elapses. The last check error is kept so a timeout says what was
// still wrong.
func waitUntil(ctx context.Context, timeout, interval time.Duration, check func() error) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lastErr := check()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last check: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

func requireEventually(t *testing.T, what string, timeout time.Duration, check func() error) {
	t.Helper()
	if err := waitUntil(context.Background(), timeout, defaultPollInterval, check); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("%s not ready after %s: %v", what, timeout, err)
		}
		t.Fatalf("waiting for %s: %v", what, err)
	}
}
