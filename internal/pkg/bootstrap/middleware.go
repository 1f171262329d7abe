// internal/pkg/bootstrap/middleware.go
package bootstrap

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack 供 websocket 升级使用。
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware 为每个请求建立关联标识、服务端 span 和请求级 logger。
func Middleware(serviceName string, next http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		corr := httpclient.ExtractCorrelation(r.Header)
		if corr.RequestID == "" {
			corr.RequestID = uuid.NewString()
		}
		if corr.UserID == "" {
			corr.UserID = "anonymous"
		}
		w.Header().Set(httpclient.HeaderRequestID, corr.RequestID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("request.id", corr.RequestID),
				attribute.String("user.id", corr.UserID),
			),
		)
		defer span.End()

		ctx = httpclient.WithCorrelation(ctx, corr)
		ctx = logger.WithFields(ctx, map[string]string{
			"request_id": corr.RequestID,
			"user_id":    corr.UserID,
		})

		logger.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("user_plan", corr.Plan).
			Str("user_region", corr.Region).
			Msg("Incoming request")

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		logger.Ctx(ctx).Debug().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}
