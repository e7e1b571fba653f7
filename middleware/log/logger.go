package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gopher0727/automod/config"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// TraceIDKey is the context key for trace ID
const TraceIDKey contextKey = "trace_id"

// Logger wraps zap.Logger and owns the log file handle, if any.
type Logger struct {
	*zap.Logger
	file *os.File
}

// NewLogger builds a logger from cfg. Unknown levels fall back to info,
// any format other than "json" uses the console encoder, and any output
// other than "file" writes to stdout.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var (
		sink zapcore.WriteSyncer
		file *os.File
	)
	if cfg.Output == "file" {
		var err error
		file, err = os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(file)
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, parseLogLevel(cfg.Level))
	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		file:   file,
	}, nil
}

// Nop returns a logger that discards everything. Used by tests and as a
// fallback when a component is built without a logger.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component returns a child logger tagged with the component name,
// e.g. "automod.engine" or "automod.dispatcher".
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}

// FromContext attaches the trace ID carried by ctx, if any, to base.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if traceID := GetTraceID(ctx); traceID != "" {
		return base.With(zap.String("trace_id", traceID))
	}
	return base
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close flushes buffered entries and releases the log file.
func (l *Logger) Close() error {
	// stdout 上的 Sync 在部分平台会返回 EINVAL，忽略
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
