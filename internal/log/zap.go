package log

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	z                 *zap.SugaredLogger
	stackLevel        slog.Level
	includeErrorLinks bool
	maxErrorLinks     int
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func newZap(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var enc zapcore.Encoder
	if opts.JSONFormat {
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		enc = zapcore.NewConsoleEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapLevel(opts.Level)))

	// skip emit and the level method
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar().With(baseFields(opts)...)
	return &zapLogger{
		z:                 z,
		stackLevel:        opts.StacktraceLevel,
		includeErrorLinks: opts.IncludeErrorLinks,
		maxErrorLinks:     opts.MaxErrorLinks,
	}, nil
}

func (l *zapLogger) With(kv ...any) Logger {
	cp := *l
	cp.z = l.z.With(kv...)
	return &cp
}

func (l *zapLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelDebug, nil, msg, kv)
}
func (l *zapLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelInfo, nil, msg, kv)
}
func (l *zapLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelWarn, nil, msg, kv)
}
func (l *zapLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	l.emit(ctx, slog.LevelError, err, msg, kv)
}

func (l *zapLogger) Sync() error {
	// stdout and stderr return EINVAL on some platforms
	_ = l.z.Sync()
	return nil
}

func (l *zapLogger) emit(ctx context.Context, lvl slog.Level, err error, msg string, kv []any) {
	zl := zapLevel(lvl)
	if !l.z.Desugar().Core().Enabled(zl) {
		return
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			kv = append(kv, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
		}
	}
	if err != nil {
		fields := errorFields(err, l.includeErrorLinks, l.maxErrorLinks)
		// zap renders errors through the "error" key, keep the slog name
		fields[1] = err.Error()
		kv = append(kv, fields...)
	}
	if lvl >= l.stackLevel {
		kv = append(kv, "stack", stackFor(err))
	}
	switch zl {
	case zapcore.DebugLevel:
		l.z.Debugw(msg, kv...)
	case zapcore.InfoLevel:
		l.z.Infow(msg, kv...)
	case zapcore.WarnLevel:
		l.z.Warnw(msg, kv...)
	default:
		l.z.Errorw(msg, kv...)
	}
}
