// Package logger provides leveled structured logging.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	fatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger writing to stderr.
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter initializes the default logger with an explicit destination.
// The "json" format writes one object per line; "text" is a classic log line with file:line.
func InitWithWriter(level string, format string, w io.Writer) {
	l := &Logger{
		level: ParseLevel(level),
		json:  strings.ToLower(format) == "json",
		out:   w,
	}
	if !l.json {
		l.logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	}
	defaultLogger = l
}

type entry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Caller  string `json:"caller,omitempty"`
	Message string `json:"msg"`
}

func (l *Logger) output(lvl Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	if !l.json {
		_ = l.logger.Output(4, "["+lvl.String()+"] "+msg)
		return
	}

	e := entry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Level:   strings.ToLower(lvl.String()),
		Message: msg,
	}
	if _, file, line, ok := runtime.Caller(3); ok {
		e.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(b, '\n'))
}

func logAt(lvl Level, format string, args ...interface{}) {
	if defaultLogger != nil && defaultLogger.level <= lvl {
		defaultLogger.output(lvl, format, args...)
	}
}

func Debug(format string, args ...interface{}) { logAt(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { logAt(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { logAt(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { logAt(ErrorLevel, format, args...) }

// Fatal logs regardless of level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	logAt(fatalLevel, format, args...)
	os.Exit(1)
}
