package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

// Dispatch executes a handler function asynchronously in a new goroutine.
// It detaches from the caller's cancellation but preserves the logger,
// and handles errors and panics.
//
// The returned channel receives the handler's result exactly once and is
// buffered, so the caller may await completion but is not required to.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) <-chan error {
	// New background context so the caller's request lifetime does not
	// cancel the handler, but keep the logger
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}

	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
				done <- goerr.New("panic in async handler", goerr.V("panic", r))
			}
		}()

		err := handler(bgCtx)
		if err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
		done <- err
	}()

	return done
}
