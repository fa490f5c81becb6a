package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelNames = map[string]LogLevel{
	"silent": LogLevelSilent,
	"error":  LogLevelError,
	"warn":   LogLevelWarn,
	"info":   LogLevelInfo,
	"debug":  LogLevelDebug,
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", name)
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	// SetLevelOutput additionally copies entries of exactly this level to w.
	SetLevelOutput(level LogLevel, w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

// sink is shared between a logger and the loggers derived from it with WithFields.
type sink struct {
	mu           sync.Mutex
	level        LogLevel
	format       LogFormat
	writer       io.Writer
	levelWriters map[LogLevel]io.Writer
}

type stdLogger struct {
	sink   *sink
	fields map[string]any
}

// NewStdLogger creates a new standard logger writing text to stdout at info level.
func NewStdLogger() Logger {
	return &stdLogger{
		sink: &sink{
			level:        LogLevelInfo,
			format:       LogFormatText,
			writer:       os.Stdout,
			levelWriters: make(map[LogLevel]io.Writer),
		},
		fields: make(map[string]any),
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(io.Discard)
	return l
}

func (l *stdLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *stdLogger) SetFormat(format LogFormat) {
	l.sink.mu.Lock()
	l.sink.format = format
	l.sink.mu.Unlock()
}

func (l *stdLogger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.writer = w
	l.sink.mu.Unlock()
}

func (l *stdLogger) SetLevelOutput(level LogLevel, w io.Writer) {
	l.sink.mu.Lock()
	if w == nil {
		delete(l.sink.levelWriters, level)
	} else {
		l.sink.levelWriters[level] = w
	}
	l.sink.mu.Unlock()
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &stdLogger{sink: l.sink, fields: merged}
}

func (l *stdLogger) Debug(format string, args ...any) {
	l.logf(LogLevelDebug, "DEBUG", format, args...)
}

func (l *stdLogger) Info(format string, args ...any) {
	l.logf(LogLevelInfo, "INFO", format, args...)
}

func (l *stdLogger) Warn(format string, args ...any) {
	l.logf(LogLevelWarn, "WARN", format, args...)
}

func (l *stdLogger) Error(format string, args ...any) {
	l.logf(LogLevelError, "ERROR", format, args...)
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.level < LogLevelInfo {
		return
	}
	if l.sink.format == LogFormatJSON {
		data := l.entry("SQL")
		data["sql"] = sql
		data["duration"] = duration.String()
		if len(args) > 0 {
			data["args"] = args
		}
		l.writeJSON(LogLevelInfo, data)
		return
	}
	msg := fmt.Sprintf("[%v] %s", duration, sql)
	if len(args) > 0 {
		msg += fmt.Sprintf(" | args: %v", args)
	}
	l.writeText(LogLevelInfo, "SQL", sqlColor(sql)+msg+ansiReset)
}

func (l *stdLogger) logf(level LogLevel, name string, format string, args ...any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.level < level {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if l.sink.format == LogFormatJSON {
		data := l.entry(name)
		data["msg"] = msg
		l.writeJSON(level, data)
		return
	}
	l.writeText(level, name, msg)
}

func (l *stdLogger) entry(name string) map[string]any {
	data := make(map[string]any, len(l.fields)+3)
	for k, v := range l.fields {
		data[k] = v
	}
	data["time"] = time.Now().Format(time.RFC3339)
	data["level"] = name
	return data
}

func (l *stdLogger) writeJSON(level LogLevel, data map[string]any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	l.write(level, append(b, '\n'))
}

func (l *stdLogger) writeText(level LogLevel, name, msg string) {
	fieldStr := ""
	if len(l.fields) > 0 {
		fieldStr = fmt.Sprintf(" fields: %v", l.fields)
	}
	line := fmt.Sprintf("[PROJECTDB] %s %s: %s%s\n", time.Now().Format("2006-01-02 15:04:05"), name, msg, fieldStr)
	l.write(level, []byte(line))
}

// write must be called with the sink lock held.
func (l *stdLogger) write(level LogLevel, p []byte) {
	if l.sink.writer != nil {
		_, _ = l.sink.writer.Write(p)
	}
	if w, ok := l.sink.levelWriters[level]; ok {
		_, _ = w.Write(p)
	}
}

func sqlColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	default:
		return ansiCyan
	}
}
