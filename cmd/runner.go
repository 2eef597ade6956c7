package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// run executes fn next to a signal watcher. The simulation itself is not
// interruptible, fn is expected to check ctx between requests.
func run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)

		return fn(gctx)
	})

	g.Go(func() error {
		select {
		case <-done:
		case <-gctx.Done():
			if ctx.Err() != nil {
				log.Info("Received shutdown signal, stopping after the current request")
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return writeMetrics()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
