package farcaster

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger installs logger as the farcaster package's logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
