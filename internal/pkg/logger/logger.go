// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

func init() {
	zerolog.DefaultContextLogger = &base
}

// Init 配置全局 logger，所有日志都会带上 service 字段。
func Init(service, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	base = zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
	zerolog.DefaultContextLogger = &base
	zlog.Logger = base
}

// L 返回不带请求上下文的服务级 logger。
func L() *zerolog.Logger {
	return &base
}

// Ctx 返回绑定在 ctx 上的 logger；如果当前有活跃的 span，会附加 trace_id 和 span_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	withTrace := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &withTrace
}

// WithFields 把带有额外字段的 logger 存入 ctx，后续 Ctx(ctx) 都会带上这些字段。
func WithFields(ctx context.Context, fields map[string]string) context.Context {
	lc := zerolog.Ctx(ctx).With()
	for k, v := range fields {
		lc = lc.Str(k, v)
	}
	l := lc.Logger()
	return l.WithContext(ctx)
}
