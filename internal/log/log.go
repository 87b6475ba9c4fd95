// Package log provides structured logging for the wallet.
//
// Console output goes to stderr so command output on stdout stays clean.
// When a log file is configured the console only shows warnings and errors
// (unless debugging) while the file receives everything at the configured
// level as JSON.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers.
var (
	App     zerolog.Logger
	Wallet  zerolog.Logger
	Ledger  zerolog.Logger
	Storage zerolog.Logger
	Tracker zerolog.Logger
)

var (
	fileMu sync.Mutex
	file   *os.File
)

const consoleTimeFormat = "15:04:05"

func init() {
	Logger = NewConsoleLogger(os.Stderr, "info")
	initComponentLoggers()
}

// Init configures the global logger. It may be called again; a previously
// opened log file is closed.
func Init(level string, jsonOutput bool, path string) error {
	lvl := parseLevel(level)

	fileMu.Lock()
	defer fileMu.Unlock()

	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
	}
	closeFileLocked()
	file = f

	console := consoleWriter(os.Stderr, jsonOutput)
	if f == nil {
		Logger = zerolog.New(console).Level(lvl).With().Timestamp().Logger()
		initComponentLoggers()
		return nil
	}

	consoleMin := zerolog.WarnLevel
	if lvl <= zerolog.DebugLevel {
		consoleMin = lvl
	}
	multi := zerolog.MultiLevelWriter(
		&levelFilter{w: zerolog.MultiLevelWriter(console), min: consoleMin},
		f,
	)
	Logger = zerolog.New(multi).Level(lvl).With().Timestamp().Logger()
	initComponentLoggers()
	return nil
}

// Close closes the log file, if any, and falls back to console logging.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	Logger = Logger.Output(consoleWriter(os.Stderr, false))
	initComponentLoggers()
	return closeFileLocked()
}

func closeFileLocked() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func consoleWriter(w io.Writer, jsonOutput bool) io.Writer {
	if jsonOutput {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

// levelFilter drops events below min.
type levelFilter struct {
	w   zerolog.LevelWriter
	min zerolog.Level
}

func (f *levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *levelFilter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < f.min {
		return len(p), nil
	}
	return f.w.WriteLevel(l, p)
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(consoleWriter(w, false)).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a config level to a zerolog.Level. Unknown values
// mean info.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func initComponentLoggers() {
	App = WithComponent("app")
	Wallet = WithComponent("wallet")
	Ledger = WithComponent("ledger")
	Storage = WithComponent("storage")
	Tracker = WithComponent("tracker")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithTx returns a logger with a tx_id field.
func WithTx(l zerolog.Logger, txID string) zerolog.Logger {
	return l.With().Str("tx_id", txID).Logger()
}
