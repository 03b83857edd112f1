package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

// Publisher delivers a single formatted log line to a broker topic.
type Publisher interface {
	Publish(topic, payload string) error
}

// defaultZapLevel defines the fallback log level when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// toZapLevel converts a textual level to zapcore.Level using known level constants.
func toZapLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func newEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = ""
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// newConsoleCore builds a zapcore.Core with a console encoder targeting stdout.
func newConsoleCore(level zap.AtomicLevel) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(newEncoderConfig())
	ws := zapcore.Lock(os.Stdout) // thread-safe writer
	return zapcore.NewCore(encoder, zapcore.AddSync(ws), level)
}

// newZapLogger constructs a sugared zap logger with the provided level string.
func newZapLogger(levelStr string) *Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(levelStr))
	return &Logger{
		SugaredLogger: zap.New(newConsoleCore(level)).Sugar(),
		level:         level,
	}
}

// DebugEnabled reports whether debug records are emitted.
func (l *Logger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// WithBrokerSink returns a logger that also publishes every record to topic.
// The console output is unchanged.
func (l *Logger) WithBrokerSink(pub Publisher, topic string) *Logger {
	sink := zapcore.NewCore(
		zapcore.NewConsoleEncoder(newEncoderConfig()),
		zapcore.AddSync(&publishWriter{pub: pub, topic: topic}),
		l.level,
	)
	core := zapcore.NewTee(l.Desugar().Core(), sink)
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
		level:         l.level,
	}
}

// publishWriter turns encoded log lines into broker messages.
// Failures are dropped: logging them would recurse into the sink.
type publishWriter struct {
	pub   Publisher
	topic string
}

func (w *publishWriter) Write(p []byte) (int, error) {
	_ = w.pub.Publish(w.topic, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
