package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

const (
	// LogTypeNone disables all logging.
	LogTypeNone = "none"

	// LogTypeStdOut writes all logging output to stdout.
	LogTypeStdOut = "stdout"

	// LogTypeFile writes all logging output to a file.
	LogTypeFile = "file"

	// DefaultMaxLogFiles is the default maximum number of log files to
	// keep around after rotation.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the default file size, in kB, at which a
	// log file is rotated.
	DefaultMaxLogFileSize = 10 * 1024
)

// LogWriter wraps the actual writer used for logging output. Where bytes
// actually end up depends on the build tag used (filelog vs. stdout); see
// log_filelog.go and log_nofilelog.go.
type LogWriter struct{}

// RotatingLogWriter is the central logging fabric used by every swapd
// service. It owns one slog.Backend, fans sub-loggers out of it by tag, and
// optionally pipes output through a size/count-bounded rotator.
type RotatingLogWriter struct {
	pipe *io.PipeWriter

	mu sync.Mutex

	backend *slog.Backend

	subLoggers map[string]slog.Logger

	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates a RotatingLogWriter whose backend writes to
// the LogWriter build-tag destination and, once InitLogRotator has been
// called, also to the rotated log file.
func NewRotatingLogWriter() *RotatingLogWriter {
	logWriter := &LogWriter{}
	r := &RotatingLogWriter{
		subLoggers: make(map[string]slog.Logger),
	}
	r.backend = slog.NewBackend(io.MultiWriter(logWriter, r))

	return r
}

// GenSubLogger creates a new sublogger for the given tag using the
// writer's backend. It satisfies the signature expected by NewSubLogger's
// genLogger parameter.
func (r *RotatingLogWriter) GenSubLogger(tag string) slog.Logger {
	return r.backend.Logger(tag)
}

// RegisterSubLogger registers the sublogger for the given tag so its level
// can later be changed via SetLogLevel or SetLogLevels.
func (r *RotatingLogWriter) RegisterSubLogger(tag string, logger slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subLoggers[tag] = logger
}

// InitLogRotator initializes the log file rotator; it must be called before
// any logging occurs if file-based logging is desired.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0o700)
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r.rotator, err = rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.rotator.Run(pr)

	r.pipe = pw

	return nil
}

// Write pipes logging output into the rotator, if initialized.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close closes the underlying log rotator, flushing any pending output.
func (r *RotatingLogWriter) Close() error {
	if r.pipe == nil {
		return nil
	}

	return r.pipe.Close()
}

// SetLogLevels adjusts every registered sub-logger to the given level.
func (r *RotatingLogWriter) SetLogLevels(level string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, logger := range r.subLoggers {
		logger.SetLevel(slog.LevelFromString(level))
	}
}

// SetLogLevel adjusts a single registered sub-logger's level and reports
// whether that subsystem tag was known.
func (r *RotatingLogWriter) SetLogLevel(subsystem, level string) bool {
	r.mu.Lock()
	logger, ok := r.subLoggers[subsystem]
	r.mu.Unlock()

	if !ok {
		return false
	}

	logger.SetLevel(slog.LevelFromString(level))

	return true
}

// NewSubLogger returns a logger tagged with subsystem. When genLogger is nil
// the logger is disabled; package-level loggers are constructed this way at
// init time, before the root RotatingLogWriter exists, and are wired to it
// later via RegisterSubLogger.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}

	return genLogger(subsystem)
}
