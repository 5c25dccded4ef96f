// Package logger is the project logger: leveled console logging backed by
// zerolog, plus terminal helpers (sections, key/value lines, tables, a
// spinner and a progress bar) that share its output and color settings.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Level represents the severity of a log message
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

const timeFormat = "15:04:05"

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// sink is where console output goes. Every logger and helper writes through
// it, so SetOutput and SetNoColor apply to loggers created earlier too.
type sink struct {
	mu       sync.RWMutex
	out      io.Writer
	noColor  bool
	showTime bool
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	cw := zerolog.ConsoleWriter{
		Out:        s.out,
		NoColor:    s.noColor,
		TimeFormat: timeFormat,
	}
	if !s.showTime {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	s.mu.RUnlock()
	return cw.Write(p)
}

func (s *sink) writer() io.Writer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.out
}

func (s *sink) colored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.noColor
}

type logger struct {
	zl zerolog.Logger
}

var (
	console       = &sink{out: os.Stdout, showTime: true}
	defaultLogger = newLogger(console, InfoLevel)
)

func newLogger(w io.Writer, level Level) *logger {
	return &logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// New creates a logger that follows the global output and color settings
func New() Logger {
	return &logger{zl: defaultLogger.zl.With().Logger()}
}

// NewWithConfig creates a standalone logger with its own writer
func NewWithConfig(cfg Config) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return newLogger(&sink{out: w, noColor: cfg.NoColor, showTime: cfg.ShowTime}, cfg.Level)
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(level)
}

// SetOutput redirects the global logger and the terminal helpers
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	console.mu.Lock()
	console.out = w
	console.mu.Unlock()
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	console.mu.Lock()
	console.noColor = noColor
	console.mu.Unlock()
	color.NoColor = noColor
}

// Output is the writer the global logger currently writes to
func Output() io.Writer {
	return console.writer()
}

func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func (l *logger) Debug(args ...interface{}) { l.zl.Debug().Msg(fmt.Sprint(args...)) }
func (l *logger) Info(args ...interface{})  { l.zl.Info().Msg(fmt.Sprint(args...)) }
func (l *logger) Warn(args ...interface{})  { l.zl.Warn().Msg(fmt.Sprint(args...)) }
func (l *logger) Error(args ...interface{}) { l.zl.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs and exits with status 1
func (l *logger) Fatal(args ...interface{}) { l.zl.Fatal().Msg(fmt.Sprint(args...)) }

func (l *logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.zl.Info().Msgf(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.zl.Warn().Msgf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.zl.Fatal().Msgf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return &logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithPrefix tags every line with a component name
func (l *logger) WithPrefix(prefix string) Logger {
	return &logger{zl: l.zl.With().Str("component", prefix).Logger()}
}

// ParseLevel parses a string log level, defaulting to info
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
