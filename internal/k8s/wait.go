package k8s

import (
	"context"
	"fmt"
	"slices"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForNodesReady waits until every named node is registered and Ready.
func (c *Client) WaitForNodesReady(ctx context.Context, names []string, interval, timeout time.Duration) error {
	var missing []string
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		ready, err := c.ReadyNodes(ctx)
		if err != nil {
			// API server may not be up yet.
			return false, nil
		}
		missing = missing[:0]
		for _, name := range names {
			if !slices.Contains(ready, name) {
				missing = append(missing, name)
			}
		}
		return len(missing) == 0, nil
	})
	if err != nil {
		return fmt.Errorf("nodes not ready %v: %w", missing, err)
	}
	return nil
}
