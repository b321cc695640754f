package swap

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger installs logger as the swap package's logger.
func UseLogger(logger slog.Logger) {
	log = logger
}
