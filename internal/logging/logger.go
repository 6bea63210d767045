package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger provides structured logging shared by every pipeline component.
type Logger struct {
	prefix  string
	logger  *log.Logger
	fields  []interface{}
}

// NewLogger creates a new logger with a prefix
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
	}
}

// WithFields returns a child logger that always attaches keysAndValues to
// every subsequent call, e.g. logger.WithFields("documentId", docID).
func (l *Logger) WithFields(keysAndValues ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keysAndValues...)
	return &Logger{prefix: l.prefix, logger: l.logger, fields: fields}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	all := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	all = append(all, l.fields...)
	all = append(all, keysAndValues...)
	kvStr := ""
	for i := 0; i < len(all); i += 2 {
		if i+1 < len(all) {
			kvStr += fmt.Sprintf(" %v=%v", all[i], all[i+1])
		}
	}
	l.logger.Printf("[%s] %s%s", level, msg, kvStr)
}
