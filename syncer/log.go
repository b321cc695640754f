package syncer

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger installs logger as the syncer package's logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
