package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal, printf-style logging contract shared by every
// subsystem. Components depend on this interface so tests can swap in Nop().
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var (
	sinkInstance *sink
	sinkOnce     sync.Once
)

// sink is the process-wide log destination: the axon debug log file plus
// stderr mirroring for WARN and above.
type sink struct {
	file   *os.File
	logger *log.Logger
	level  LogLevel
	mu     sync.Mutex
}

type componentLogger struct {
	sink      *sink
	component string
}

func getSink() *sink {
	sinkOnce.Do(func() {
		sinkInstance = newSink(DEBUG)
	})
	return sinkInstance
}

func newSink(level LogLevel) *sink {
	s := &sink{level: level}

	home, err := os.UserHomeDir()
	if err != nil {
		return s
	}
	dir := filepath.Join(home, ".axon")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return s
	}
	file, err := os.OpenFile(filepath.Join(dir, "axon-debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return s
	}
	s.file = file
	s.logger = log.New(file, "", 0) // formatted by hand below
	return s
}

// SetLevel sets the minimum level recorded by the shared sink.
func SetLevel(level LogLevel) {
	s := getSink()
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

// NewComponentLogger returns the default application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return &componentLogger{sink: getSink(), component: component}
}

func (l *componentLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *componentLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *componentLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *componentLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func (l *componentLogger) log(level LogLevel, format string, args ...any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [Engine] engine.go:123 - message
	msg := fmt.Sprintf(format, args...)
	entry := fmt.Sprintf("%s [%s] [%s] %s:%d - %s",
		time.Now().Format("2006-01-02 15:04:05"), levelToString(level), l.component, file, line, msg)

	if s.logger != nil {
		s.logger.Println(entry)
	}
	if level >= WARN {
		fmt.Fprintln(os.Stderr, entry)
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
