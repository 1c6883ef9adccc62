package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30

	consoleTimeFormat = "2006-01-02 15:04:05"
)

// Options controls where and how much ZeroLogger writes.
type Options struct {
	// Verbose enables Verbose() output (debug level).
	Verbose bool

	// JSON writes newline-delimited JSON to the console and the log file
	// instead of human-readable lines.
	JSON bool

	// File, when set, adds a rotating log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console is the console destination. Defaults to stderr so stdout stays
	// clean for command output.
	Console io.Writer
}

// ZeroLogger implements sfdash.Logger on top of zerolog.
// Safe for concurrent use by multiple goroutines.
type ZeroLogger struct {
	log  zerolog.Logger
	file *lumberjack.Logger
}

// New creates a console logger, adding a rotating file writer when opts.File is set.
// If the log directory cannot be created the logger falls back to console only
// and reports the problem through itself.
func New(opts Options) *ZeroLogger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var consoleWriter io.Writer = console
	if !opts.JSON {
		consoleWriter = zerolog.ConsoleWriter{Out: console, TimeFormat: consoleTimeFormat}
	}

	l := &ZeroLogger{}
	out := consoleWriter

	var dirErr error
	if opts.File != "" {
		if dirErr = ensureLogDir(opts.File); dirErr == nil {
			l.file = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    valueOr(opts.MaxSizeMB, DefaultMaxSizeMB),
				MaxBackups: valueOr(opts.MaxBackups, DefaultMaxBackups),
				MaxAge:     valueOr(opts.MaxAgeDays, DefaultMaxAgeDays),
				Compress:   opts.Compress,
			}
			var fileWriter io.Writer = l.file
			if !opts.JSON {
				fileWriter = zerolog.ConsoleWriter{Out: l.file, TimeFormat: consoleTimeFormat, NoColor: true}
			}
			out = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
		}
	}

	l.log = zerolog.New(out).Level(levelFor(opts.Verbose)).With().Timestamp().Logger()
	if dirErr != nil {
		l.log.Error().Err(dirErr).Str("path", opts.File).Msg("Failed to prepare log directory; logging to console only")
	}
	return l
}

// NewJSONLogger writes newline-delimited JSON to w. Used where log output is
// consumed by machines (container platforms) and in tests.
func NewJSONLogger(w io.Writer, verbose bool) *ZeroLogger {
	return &ZeroLogger{
		log: zerolog.New(w).Level(levelFor(verbose)).With().Timestamp().Logger(),
	}
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ZeroLogger) Verbose(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

// Info logs informational messages about normal operations.
func (l *ZeroLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

// Error logs error messages.
func (l *ZeroLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// Close flushes and closes the log file, if any.
func (l *ZeroLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func levelFor(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func valueOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var _ sfdash.Logger = (*ZeroLogger)(nil)
