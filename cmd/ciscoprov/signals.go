package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM. The returned
// stop function restores default signal handling.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func withSignals(fn func(ctx context.Context) error) error {
	ctx, stop := signalContext()
	defer stop()
	return fn(ctx)
}
