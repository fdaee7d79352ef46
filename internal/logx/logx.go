// Package logx is a thin leveled wrapper over stdlib log.Logger,
// writing structured key=value lines. Output is routed through
// lumberjack for rotation when a log file path is configured.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is one of the four leveled severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel reads a level name, defaulting to Info on an unknown value.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger is the process-wide leveled logger.
type Logger struct {
	std   *log.Logger
	level Level
}

// New builds a Logger writing to path if non-empty (rotated via
// lumberjack), otherwise to stderr.
func New(path string, level Level) *Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return &Logger{std: log.New(w, "", log.LstdFlags), level: level}
}

// fields formats key/value pairs as " key=value" suffixes appended to
// msg, used by every level method below.
func fields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, kv ...any) {
	if level < l.level {
		return
	}
	l.std.Printf("level=%s msg=%q%s", level, msg, fields(kv...))
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv...) }
