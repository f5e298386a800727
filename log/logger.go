// Package log provides structured logging with workflow context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for stage code (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Every entry carries the run_id of the delivery workflow. Identifiers
// learned along the way (session_id, ticket_id, transfer_id) are attached
// with Logger.With.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with workflow context.
type Logger struct {
	zap *zap.Logger
	// fields and level are kept so WithOutput can rebuild the core.
	fields []zap.Field
	level  zapcore.Level
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Options configures a Logger.
type Options struct {
	// Output is the log destination. Defaults to os.Stderr.
	Output io.Writer
	// Level is the minimum level emitted. Defaults to debug.
	Level zapcore.Level
}

// NewLogger creates a logger bound to runID writing JSON to stderr.
func NewLogger(runID string) *Logger {
	return NewLoggerWithOptions(runID, Options{Output: os.Stderr, Level: zapcore.DebugLevel})
}

// NewLoggerWithOptions creates a logger bound to runID with explicit output and level.
func NewLoggerWithOptions(runID string, opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	fields := []zap.Field{zap.String("run_id", runID)}
	return &Logger{
		zap:    zap.New(newCore(opts.Output, opts.Level)).With(fields...),
		fields: fields,
		level:  opts.Level,
	}
}

func newCore(w io.Writer, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), level)
}

// Nop returns a logger that discards everything. Useful as a default
// for components constructed without a logger.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zapcore.InvalidLevel}
}

// WithOutput returns a new logger with a different output writer.
// Context fields and the level already bound to l are kept.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	fields := append([]zap.Field(nil), l.fields...)
	return &Logger{
		zap:    zap.New(newCore(w, l.level)).With(fields...),
		fields: fields,
		level:  l.level,
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// With returns a child logger that adds key/value context to every entry.
// Empty values are skipped so callers can pass identifiers that may not
// be known yet.
func (l *Logger) With(fields map[string]string) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		zf = append(zf, zap.String(k, v))
	}
	bound := append(append([]zap.Field(nil), l.fields...), zf...)
	return &Logger{zap: l.zap.With(zf...), fields: bound, level: l.level}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
