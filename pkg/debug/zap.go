package debug

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapTracer writes events to logger: registry misses and validation
// issues at warn, middleware failures at error, everything else at debug.
func NewZapTracer(logger *zap.Logger) Tracer {
	if logger == nil {
		return Nop
	}
	return &zapTracer{logger: logger.Named("formschema")}
}

type zapTracer struct {
	logger *zap.Logger
}

func (z *zapTracer) Trace(_ context.Context, event Event) {
	level := zapcore.DebugLevel
	switch event.Severity() {
	case SeverityWarning:
		level = zapcore.WarnLevel
	case SeverityError:
		level = zapcore.ErrorLevel
	}
	ce := z.logger.Check(level, event.Message())
	if ce == nil {
		return
	}

	fields := []zap.Field{zap.String("kind", string(event.Kind))}
	if event.PassID != "" {
		fields = append(fields, zap.String("pass_id", event.PassID))
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if event.Component != "" {
		fields = append(fields, zap.String("component", event.Component))
	}
	if event.Kind == KindMiddleware || event.Kind == KindMiddlewareError {
		fields = append(fields, zap.Int("index", event.Index))
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	ce.Write(fields...)
}
