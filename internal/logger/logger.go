// Package logger is the installer's leveled file logger. Output is discarded
// unless a log file is configured so the terminal UI is never written over.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Environment variables read by New.
const (
	EnvLevel = "TWINAOS_LOG_LEVEL"
	EnvFile  = "TWINAOS_LOG_FILE"
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name. Unknown names yield
// LevelInfo together with an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Logger is a simple leveled logger
type Logger struct {
	mu     sync.Mutex
	level  Level
	prefix string
	logger *log.Logger
	file   *os.File
}

// Default is the process-wide logger used by the package-level helpers.
var Default *Logger

func init() {
	Default = New()
}

// New creates a logger from TWINAOS_LOG_LEVEL and TWINAOS_LOG_FILE.
func New() *Logger {
	l := &Logger{
		level:  LevelInfo,
		logger: log.New(io.Discard, "", log.LstdFlags),
	}
	if levelStr := os.Getenv(EnvLevel); levelStr != "" {
		if level, err := ParseLevel(levelStr); err == nil {
			l.level = level
		}
	}
	if logFile := os.Getenv(EnvFile); logFile != "" {
		_ = l.SetFile(logFile)
	}
	return l
}

// Configure applies a level name and optional file path, typically taken from
// the loaded configuration after the environment was read.
func (l *Logger) Configure(level, file string) error {
	if level != "" {
		lvl, err := ParseLevel(level)
		if err != nil {
			return err
		}
		l.SetLevel(lvl)
	}
	if file != "" {
		return l.SetFile(file)
	}
	return nil
}

// SetFile redirects output to the given file, opened for append.
func (l *Logger) SetFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = f
	l.logger.SetOutput(f)
	return nil
}

// Close closes the logger and any open file handles
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.logger.SetOutput(io.Discard)
		return err
	}
	return nil
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

// With returns a logger sharing the output and level of l whose messages are
// prefixed with the component name.
func (l *Logger) With(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "." + component
	}
	return &Logger{level: l.level, prefix: prefix, logger: l.logger}
}

func (l *Logger) Debug(format string, v ...any) {
	l.log(LevelDebug, format, v...)
}

func (l *Logger) Info(format string, v ...any) {
	l.log(LevelInfo, format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	l.log(LevelWarn, format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.log(LevelError, format, v...)
}

func (l *Logger) log(level Level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		l.logger.Printf("[%s] %s: %s", level, l.prefix, msg)
		return
	}
	l.logger.Printf("[%s] %s", level, msg)
}

// Package-level functions that use the default logger

func Debug(format string, v ...any) {
	Default.Debug(format, v...)
}

func Info(format string, v ...any) {
	Default.Info(format, v...)
}

func Warn(format string, v ...any) {
	Default.Warn(format, v...)
}

func Error(format string, v ...any) {
	Default.Error(format, v...)
}

// Close closes the default logger
func Close() error {
	return Default.Close()
}
