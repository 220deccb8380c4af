package journal

import (
	"context"
	"time"
)

// NoSleep disables backoff waits in tests.
func (k *Kafka) NoSleep() {
	k.sleep = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }
}

var Backoff = backoff
