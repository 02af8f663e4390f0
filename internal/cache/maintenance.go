package cache

import (
	"context"
	"time"
)

// Report samples Stats every interval and hands each snapshot to sink until
// ctx is canceled. It blocks; run it in a goroutine owned by the caller.
//
// every <= 0 disables reporting and Report returns immediately.
func (c *Cache[K, V]) Report(ctx context.Context, every time.Duration, sink func(Stats)) {
	if every <= 0 || sink == nil {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink(c.Stats())
		}
	}
}
