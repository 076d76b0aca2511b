package main

import (
	"context"
	"log/slog"
)

// feedRunner is the part of gateway.Client the server drives.
type feedRunner interface {
	Run(ctx context.Context) error
}

// startFeed runs feed in the background until ctx is done. The returned
// channel closes only after Run has returned, so once it is closed no
// further event reaches the session.
func startFeed(ctx context.Context, feed feedRunner, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := feed.Run(ctx); err != nil {
			logger.Error("gateway feed stopped", "error", err)
		}
	}()
	return done
}
