// Package logx is a small leveled logger that buffers lines in memory so
// the TUI can show or dump them without fighting the terminal. Output to
// stderr or a file is opt-in via environment variables.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

const maxLines = 500

var (
	mu       sync.Mutex
	level    = Info
	buf      = make([]string, 0, maxLines)
	toStderr = false
	sink     io.WriteCloser
)

func SetLevel(l Level) { mu.Lock(); level = l; mu.Unlock() }

// SetupFromEnv reads RECONSOLE_LOG_LEVEL, RECONSOLE_LOG_STDERR and
// RECONSOLE_LOG_FILE. Stderr output stays off unless asked for, since the
// alternate screen owns the terminal while the app runs.
func SetupFromEnv() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("RECONSOLE_LOG_LEVEL"))) {
	case "debug":
		SetLevel(Debug)
	case "info":
		SetLevel(Info)
	case "warn", "warning":
		SetLevel(Warn)
	case "error":
		SetLevel(Error)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("RECONSOLE_LOG_STDERR"))); v != "" {
		mu.Lock()
		toStderr = v != "0" && v != "false" && v != "no"
		mu.Unlock()
	}
	if path := strings.TrimSpace(os.Getenv("RECONSOLE_LOG_FILE")); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			mu.Lock()
			sink = f
			mu.Unlock()
		}
	}
}

// Close flushes and releases the file sink, if one was opened.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
}

func Debugf(format string, a ...any) { logf(Debug, "DEBUG", format, a...) }
func Infof(format string, a ...any)  { logf(Info, "INFO", format, a...) }
func Warnf(format string, a ...any)  { logf(Warn, "WARN", format, a...) }
func Errorf(format string, a ...any) { logf(Error, "ERROR", format, a...) }

func logf(l Level, tag, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	line := fmt.Sprintf("%s %-5s %s", ts, tag, fmt.Sprintf(format, a...))
	if len(buf) >= maxLines {
		copy(buf[0:], buf[1:])
		buf = buf[:len(buf)-1]
	}
	buf = append(buf, line)
	if toStderr {
		fmt.Fprintln(os.Stderr, line)
	}
	if sink != nil {
		fmt.Fprintln(sink, line)
	}
}

// Dump returns the buffered lines as a single string, oldest first.
func Dump() string {
	mu.Lock()
	defer mu.Unlock()
	return strings.Join(buf, "\n")
}

// Lines returns a copy of the buffered lines.
func Lines() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(buf))
	copy(out, buf)
	return out
}
