package swapd

import (
	"github.com/decred/dcrd/connmgr"
	"github.com/decred/slog"
	"github.com/farcasterd/swapd/build"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
	"github.com/farcasterd/swapd/farcaster"
	"github.com/farcasterd/swapd/peer"
	"github.com/farcasterd/swapd/swap"
	"github.com/farcasterd/swapd/syncer"
	"github.com/farcasterd/swapd/wallet"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

// Loggers can not be used before the log rotator has been initialized with a
// log file. This must be performed early during application startup by
// calling InitLogRotator() on the main log writer instance in the config.
var (
	// swapdPkgLoggers is a list of all root-package level loggers that are
	// registered. They are tracked here so they can be replaced once the
	// SetupLoggers function is called with the final root logger.
	swapdPkgLoggers []*replaceableLogger

	// addPkgLogger is a helper function that creates a new replaceable
	// root package level logger and adds it to the list of loggers that
	// are replaced again later, once the final root logger is ready.
	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		swapdPkgLoggers = append(swapdPkgLoggers, l)
		return l
	}

	// Loggers that need to be accessible from the root package can be
	// placed here. Loggers only used within a sub package are declared
	// there as slog.Disabled and replaced below through that package's
	// UseLogger via AddSubLogger. We declare all loggers so we never run into a nil
	// reference if they are used early. But SetupLoggers should always be
	// called as soon as possible to finish wiring them to a root logger.
	fcstLog = addPkgLogger("FCST")
)

// SetupLoggers initializes all package-global logger variables across the
// whole daemon, wiring every subsystem's logger to the given root writer.
func SetupLoggers(root *build.RotatingLogWriter) {
	// Now that we have the proper root logger, we can replace the
	// placeholder root package loggers.
	for _, l := range swapdPkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	farcaster.UseLogger(fcstLog)

	AddSubLogger(root, "BUSX", bus.UseLogger)
	AddSubLogger(root, "SYNC", syncer.UseLogger)
	AddSubLogger(root, "WLLT", wallet.UseLogger)
	AddSubLogger(root, "SWAP", swap.UseLogger)
	AddSubLogger(root, "PEER", peer.UseLogger)
	AddSubLogger(root, "CKPT", checkpoint.UseLogger)
	AddSubLogger(root, "CMGR", connmgr.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger slog.Logger, useLoggers ...func(slog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they don't have to be performed when the logging level doesn't warrant
// it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
