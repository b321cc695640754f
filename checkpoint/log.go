package checkpoint

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger installs logger as the checkpoint package's logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
