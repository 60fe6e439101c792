// Package logging provides component loggers with file rotation for gametune.
// The CLI and the gametuned agent share this package.
//
// Basic usage:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("network")
//	logger.Info("adapter detected", "name", "Ethernet", "index", 12)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
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
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to per-component level overrides.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level. Empty disables it.
	ConsoleLevel string

	// Backlog keeps the most recent entries in memory so late subscribers
	// (the agent's log stream) can replay them. Zero disables it.
	Backlog int
}

// Entry is a single log line as delivered to subscribers.
type Entry struct {
	Time      time.Time `json:"time"`
	Level     Level     `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Logger wraps charmbracelet/log with component identification.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// Sink returns a line-oriented callback that logs each message at info level.
// It matches the progress callback every optimizer accepts.
func (l *Logger) Sink() func(message string) {
	return func(message string) {
		l.log(LevelInfo, message)
	}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	write(l.file, level, msg, args...)
	if l.console != nil {
		write(l.console, level, msg, args...)
	}

	globalState.publish(Entry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
	})
}

func write(logger *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// With returns a new logger with additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	derived := &Logger{
		file:      l.file.With(args...),
		component: l.component,
	}
	if l.console != nil {
		derived.console = l.console.With(args...)
	}
	return derived
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger
	subscribers map[chan Entry]struct{}

	consoleEnabled bool
	consoleLevel   Level

	backlog *Backlog
}

var globalState = &state{
	loggers:     make(map[string]*Logger),
	components:  make(map[string]Level),
	subscribers: make(map[chan Entry]struct{}),
}

// Init initializes the logging system. Before Init is called every logger
// writes to io.Discard.
func Init(cfg Config) error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if globalState.initialized && globalState.writer != nil {
		if err := globalState.writer.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}
	globalState.components = make(map[string]Level)

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	globalState.level = level

	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		globalState.components[comp] = parsed
	}

	globalState.consoleEnabled = false
	if cfg.ConsoleLevel != "" {
		consoleLevel, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		globalState.consoleLevel = consoleLevel
		globalState.consoleEnabled = true
	}

	globalState.backlog = nil
	if cfg.Backlog > 0 {
		globalState.backlog = NewBacklog(cfg.Backlog)
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}

	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}
	globalState.writer = writer
	globalState.initialized = true

	// Loggers handed out before Init are package-level vars; rebuild them in
	// place so they pick up the new writer.
	for component, logger := range globalState.loggers {
		*logger = *newLogger(component)
	}

	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	globalState.mu.RLock()
	if logger, ok := globalState.loggers[component]; ok {
		globalState.mu.RUnlock()
		return logger
	}
	globalState.mu.RUnlock()

	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}

	logger := newLogger(component)
	globalState.loggers[component] = logger
	return logger
}

// newLogger builds a logger for component. Must be called with globalState.mu held.
func newLogger(component string) *Logger {
	level := globalState.level
	if override, ok := globalState.components[component]; ok {
		level = override
	}

	if !globalState.initialized {
		return &Logger{
			file: log.NewWithOptions(io.Discard, log.Options{
				Level:  level.charm(),
				Prefix: component,
			}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(globalState.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}

	if globalState.consoleEnabled {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           globalState.consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          component,
		})
	}

	return logger
}

// Close flushes and closes the log file and ends every subscription.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.initialized {
		return nil
	}

	for ch := range globalState.subscribers {
		close(ch)
		delete(globalState.subscribers, ch)
	}

	var closeErr error
	if globalState.writer != nil {
		if err := globalState.writer.Close(); err != nil {
			closeErr = fmt.Errorf("closing log writer: %w", err)
		}
		globalState.writer = nil
	}

	globalState.initialized = false
	globalState.components = make(map[string]Level)
	globalState.backlog = nil
	for component, logger := range globalState.loggers {
		*logger = *newLogger(component)
	}

	return closeErr
}

// Subscribe returns a channel that receives every subsequent entry. Entries are
// dropped rather than blocking the logger when the channel is full.
func Subscribe() <-chan Entry {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	ch := make(chan Entry, 100)
	globalState.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription. The channel is not closed; callers drain it.
func Unsubscribe(ch <-chan Entry) {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	for sub := range globalState.subscribers {
		if sub == ch {
			delete(globalState.subscribers, sub)
			return
		}
	}
}

// Recent returns up to n of the most recent entries, oldest first. It returns
// nil unless Init was called with a Backlog.
func Recent(n int) []Entry {
	globalState.mu.RLock()
	defer globalState.mu.RUnlock()

	if globalState.backlog == nil {
		return nil
	}
	return globalState.backlog.Last(n)
}

func (s *state) publish(entry Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.backlog != nil {
		s.backlog.Add(entry)
	}

	for ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/gametune/gametune.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "gametune", "gametune.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
