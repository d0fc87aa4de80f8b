package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

// loadLevel reads DEBUG and LOG_LEVEL once. DEBUG=true forces debug.
func loadLevel() {
	levelOnce.Do(func() {
		level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			level = LevelDebug
		}
		currentLevel.Store(int32(level))
	})
}

// ParseLevel maps a level name to a LogLevel. Unknown names yield LevelInfo
// and false.
func ParseLevel(s string) (LogLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	for i, name := range levelNames {
		if s == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// SetLevel overrides the level picked up from the environment.
func SetLevel(level LogLevel) {
	loadLevel()
	currentLevel.Store(int32(level))
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	loadLevel()
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return enabled(LevelDebug)
}

func enabled(level LogLevel) bool {
	return GetLevel() <= level
}

func emit(level LogLevel, msg string) {
	log.Print("[" + strings.ToUpper(level.String()) + "] " + msg)
}

func logf(level LogLevel, format string, args []interface{}) {
	if enabled(level) {
		emit(level, fmt.Sprintf(format, args...))
	}
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args) }

// Info logs an info message
func Info(format string, args ...interface{}) { logf(LevelInfo, format, args) }

// Warn logs a warning message
func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args) }

// Error logs an error message
func Error(format string, args ...interface{}) { logf(LevelError, format, args) }

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// OpLogger tags every message with an operation name and the file:line of
// the code that logged it.
type OpLogger struct {
	op   string
	site string
}

// Op returns a logger bound to the named operation, e.g. "ingest.Add".
func Op(op string) OpLogger {
	return OpLogger{op: op}
}

// At returns a logger that reports site instead of its own caller, for
// helpers that log on behalf of the code that called them.
func (o OpLogger) At(site string) OpLogger {
	o.site = site
	return o
}

func (o OpLogger) Debug(format string, args ...interface{}) { o.logf(LevelDebug, format, args) }
func (o OpLogger) Info(format string, args ...interface{})  { o.logf(LevelInfo, format, args) }
func (o OpLogger) Warn(format string, args ...interface{})  { o.logf(LevelWarn, format, args) }
func (o OpLogger) Error(format string, args ...interface{}) { o.logf(LevelError, format, args) }

// logf must be called directly from the exported methods so CallSite(3)
// lands on their caller.
func (o OpLogger) logf(level LogLevel, format string, args []interface{}) {
	if !enabled(level) {
		return
	}
	site := o.site
	if site == "" {
		site = CallSite(3)
	}
	emit(level, o.op+" ("+site+"): "+fmt.Sprintf(format, args...))
}

// CallSite returns "file.go:line" for the caller skip frames above it.
func CallSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", l)
}
