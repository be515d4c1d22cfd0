package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ObservabilityLogger provides structured logging using logrus for Loki ingestion
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentServer         = "http_server"
	ComponentParser         = "artifact_parser"
	ComponentNormalizer     = "function_call_normalizer"
	ComponentSession        = "session_store"
	ComponentUpstream       = "upstream"
	ComponentCircuitBreaker = "circuit_breaker"
	ComponentConfig         = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest  = "request"
	CategoryArtifact = "artifact"
	CategoryAction   = "action"
	CategorySuccess  = "success"
	CategoryWarning  = "warning"
	CategoryError    = "error"
	CategoryHealth   = "health"
	CategoryFailover = "failover"
	CategoryDebug    = "debug"
)

const serviceName = "artifact-proxy"

// ObservabilityOptions selects where and how logs are written
type ObservabilityOptions struct {
	// LogDir receives artifact-proxy.jsonl; empty writes to Output
	LogDir string
	// Format is "json" (default) or "text"
	Format string
	Level  Level
	// Output is used when LogDir is empty; defaults to stdout
	Output io.Writer
}

// NewObservabilityLogger creates a structured logrus logger
func NewObservabilityLogger(opts ObservabilityOptions) (*ObservabilityLogger, error) {
	logger := logrus.New()
	o := &ObservabilityLogger{logger: logger}

	switch {
	case opts.LogDir != "":
		if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		logPath := filepath.Join(opts.LogDir, serviceName+".jsonl")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		o.file = file
		logger.SetOutput(file)
	case opts.Output != nil:
		logger.SetOutput(opts.Output)
	default:
		logger.SetOutput(os.Stdout)
	}

	if strings.EqualFold(opts.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
	logger.SetLevel(opts.Level.logrusLevel())

	return o, nil
}

// Logrus exposes the underlying logger so printf-style Loggers can share its output and hooks
func (o *ObservabilityLogger) Logrus() *logrus.Logger {
	return o.logger
}

// AddHook attaches a logrus hook, e.g. a LokiHook
func (o *ObservabilityLogger) AddHook(hook logrus.Hook) {
	o.logger.AddHook(hook)
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// createEntry creates a logrus entry with standard fields
func (o *ObservabilityLogger) createEntry(component, category, requestID string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
		"service":   serviceName,
		"component": component,
		"category":  category,
	})

	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	if fields != nil {
		entry = entry.WithFields(fields)
	}

	return entry
}

// Debug logs a debug message
func (o *ObservabilityLogger) Debug(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Debug(message)
}

// Info logs an info message
func (o *ObservabilityLogger) Info(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Info(message)
}

// Warn logs a warning message
func (o *ObservabilityLogger) Warn(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Warn(message)
}

// Error logs an error message
func (o *ObservabilityLogger) Error(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Error(message)
}

// Request logs request-related events
func (o *ObservabilityLogger) Request(requestID, message string, fields map[string]interface{}) {
	o.Info(ComponentServer, CategoryRequest, requestID, message, fields)
}

// CircuitBreakerEvent logs circuit breaker state changes
func (o *ObservabilityLogger) CircuitBreakerEvent(requestID, endpoint, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["endpoint"] = endpoint
	o.Info(ComponentCircuitBreaker, CategoryHealth, requestID, message, fields)
}

// ArtifactEvent logs an artifact or action lifecycle event
func (o *ObservabilityLogger) ArtifactEvent(requestID, messageID, artifactID, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["message_id"] = messageID
	fields["artifact_id"] = artifactID
	o.Info(ComponentParser, CategoryArtifact, requestID, message, fields)
}
