package peer

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger installs logger as the peer package's logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
