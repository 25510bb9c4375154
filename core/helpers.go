package turntaking

import (
	"context"
	"fmt"
)

// withContextCancelHook runs onContextDone when ctx is cancelled, unless the
// returned channel is closed first.
func withContextCancelHook(ctx context.Context, onContextDone func()) chan struct{} {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			onContextDone()
		case <-done:
		}
	}()
	return done
}

// panicSafeWorker converts a panic inside run into a returned error so a
// misbehaving callback cannot take the process down with it.
func panicSafeWorker(name string, run func() error) func() error {
	return func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// closeClient releases a client through whichever close signature it exposes.
// Clients without one are left alone.
func closeClient(ctx context.Context, client any) error {
	switch client := client.(type) {
	case interface{ Close() }:
		client.Close()
	case interface{ Close() error }:
		return client.Close()
	case interface{ Close(ctx context.Context) }:
		client.Close(ctx)
	case interface{ Close(ctx context.Context) error }:
		return client.Close(ctx)
	}
	return nil
}
