package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpguard/internal/pkg/stacktrace"
)

// delivery couples a received message with the broker's settle callbacks.
type delivery struct {
	msg  *message
	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// process runs h for one delivery and settles it.
func process(ctx context.Context, driver string, h Handler, d delivery) error {
	herr := callHandler(ctx, driver, h, d.msg)

	settle, verb := d.ack, "ack"
	if herr != nil {
		slog.WarnContext(ctx, "messaging handler failed",
			"driver", driver, "topic", d.msg.topic, "message_id", d.msg.id, "error", herr)
		settle, verb = d.nack, "nack"
	}
	if settle == nil {
		return herr
	}

	if err := settle(ctx); err != nil {
		slog.ErrorContext(ctx, "messaging settle failed",
			"driver", driver, "action", verb, "topic", d.msg.topic, "error", err)
		return err
	}
	return herr
}

func callHandler(ctx context.Context, driver string, h Handler, msg *message) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in messaging handler",
				"driver", driver, "panic", rvr, "stack", stacktrace.InternalPaths(debug.Stack()))
			err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
		}
	}()

	return h(ctx, msg)
}

// workers runs n goroutines that process deliveries from in until ctx is
// done or in is closed. Handlers run detached from ctx cancellation so a
// message being processed at shutdown is settled.
func workers(ctx context.Context, driver string, h Handler, n int, in <-chan delivery) *sync.WaitGroup {
	hctx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-in:
					if !ok {
						return
					}
					//nolint:errcheck // logged in process
					_ = process(hctx, driver, h, d)
				}
			}
		})
	}
	return &wg
}
