package logger

import (
	"artifact-proxy/internal"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents the severity level of a log message
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
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

// Emoji returns the emoji prefix for a log level
func (l Level) Emoji() string {
	switch l {
	case DEBUG:
		return "🔍"
	case INFO:
		return "ℹ️"
	case WARN:
		return "⚠️"
	case ERROR:
		return "❌"
	default:
		return "📝"
	}
}

// ParseLevel converts a level name to Level with fallback to INFO
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
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

// logrusLevel maps a Level onto the logrus severity scale
func (l Level) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	WithField(key, value string) Logger
	WithComponent(component string) Logger
}

// LoggerConfig holds configuration for the logger
type LoggerConfig interface {
	GetMinLogLevel() Level
	ShouldMaskAPIKeys() bool
}

// ContextLogger implements Logger on top of a logrus logger, adding the request
// ID from ctx and the component name as structured fields
type ContextLogger struct {
	ctx       context.Context
	config    LoggerConfig
	base      *logrus.Logger
	fields    map[string]string
	component string
}

// contextKey is used for storing logger in context
type contextKey string

const (
	loggerContextKey contextKey = "logger"
)

// New creates a ContextLogger writing through base. A nil base uses the logrus
// standard logger; a nil config lets every level through to logrus' own filter.
func New(ctx context.Context, config LoggerConfig, base *logrus.Logger) Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &ContextLogger{
		ctx:    ctx,
		config: config,
		base:   base,
		fields: make(map[string]string),
	}
}

// Default returns a logger on the logrus standard logger
func Default() Logger {
	return New(context.Background(), nil, nil)
}

// FromContext returns a logger from context, or creates a new one if none exists
func FromContext(ctx context.Context, config LoggerConfig, base *logrus.Logger) Logger {
	if logger, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return logger
	}
	return New(ctx, config, base)
}

// WithContext stores the logger in context for later retrieval
func (l *ContextLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// WithField adds a field to the logger context
func (l *ContextLogger) WithField(key, value string) Logger {
	newFields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &ContextLogger{
		ctx:       l.ctx,
		config:    l.config,
		base:      l.base,
		fields:    newFields,
		component: l.component,
	}
}

// WithComponent sets the component for the logger
func (l *ContextLogger) WithComponent(component string) Logger {
	return &ContextLogger{
		ctx:       l.ctx,
		config:    l.config,
		base:      l.base,
		fields:    l.fields,
		component: component,
	}
}

// shouldLog determines if a message should be logged based on the configured minimum level
func (l *ContextLogger) shouldLog(level Level) bool {
	if l.config == nil {
		return true
	}
	return level >= l.config.GetMinLogLevel()
}

// entry builds the logrus entry carrying request ID, component and fields
func (l *ContextLogger) entry() *logrus.Entry {
	fields := make(logrus.Fields, len(l.fields)+2)
	for k, v := range l.fields {
		fields[k] = v
	}
	if requestID := internal.GetRequestID(l.ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if l.component != "" {
		fields["component"] = l.component
	}
	return l.base.WithFields(fields)
}

func (l *ContextLogger) log(level Level, format string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}
	message := fmt.Sprintf(format, args...)
	if l.config != nil && l.config.ShouldMaskAPIKeys() {
		message = maskAPIKeys(message)
	}
	l.entry().Log(level.logrusLevel(), level.Emoji()+" "+message)
}

var (
	reSecretKey   = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{4,}`)
	reBearerToken = regexp.MustCompile(`Bearer\s+\S+`)
)

// maskAPIKeys masks potential API keys in log messages
func maskAPIKeys(message string) string {
	if !strings.Contains(message, "sk-") && !strings.Contains(message, "Bearer") {
		return message
	}
	message = reBearerToken.ReplaceAllString(message, "Bearer ***")
	return reSecretKey.ReplaceAllString(message, "sk-***")
}

// Debug logs a debug level message
func (l *ContextLogger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info level message
func (l *ContextLogger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning level message
func (l *ContextLogger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error level message
func (l *ContextLogger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})      {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(string, ...interface{})      {}
func (n nopLogger) WithField(string, string) Logger { return n }
func (n nopLogger) WithComponent(string) Logger     { return n }

// Nop returns a logger that discards all output
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
