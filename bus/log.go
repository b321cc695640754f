package bus

import "github.com/decred/slog"

// log is this package's logger, disabled until UseLogger installs a real
// backend via the root SetupLoggers call.
var log = slog.Disabled

// UseLogger installs logger as the bus package's logger, following the
// per-package logging convention used throughout this module.
func UseLogger(logger slog.Logger) {
	log = logger
}
