// Package netutil provides network helpers for waiting on node endpoints.
package netutil

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialTimeout bounds a single connection attempt.
const DialTimeout = 2 * time.Second

// WaitForAddress waits until a TCP connection to address succeeds.
// It dials immediately and then every interval until ctx is done.
func WaitForAddress(ctx context.Context, address string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval %v", interval)
	}

	dialer := net.Dialer{Timeout: DialTimeout}
	try := func() bool {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}

	if try() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s: %w", address, ctx.Err())
			}
			return ctx.Err()
		case <-ticker.C:
			if try() {
				return nil
			}
		}
	}
}
