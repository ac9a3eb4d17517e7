// Package logger is a small leveled printf-style logger shared by every
// FinSight component.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu     sync.RWMutex
	level  = INFO
	output = log.New(os.Stderr, "", log.LstdFlags)
)

func (l Level) String() string {
	switch l {
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

// ParseLevel maps a config string onto a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects all log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = log.New(w, "", log.LstdFlags)
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	min, out := level, output
	mu.RUnlock()
	if l < min {
		return
	}
	out.Printf("[%s] %s", l, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { logf(DEBUG, format, args...) }
func Info(format string, args ...any)  { logf(INFO, format, args...) }
func Warn(format string, args ...any)  { logf(WARN, format, args...) }
func Error(format string, args ...any) { logf(ERROR, format, args...) }
