package logger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Middleware logs every request once it completes, at a level chosen by
// status: 5xx error, 4xx warn, otherwise info. It must run after
// middleware.RequestID so the id is available. Handlers get the request
// logger through FromContext.
func Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, reqLogger := WithRequestID(r.Context(), logger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			), middleware.GetReqID(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, zap.String("query", r.URL.RawQuery))
			}

			switch {
			case status >= 500:
				reqLogger.Error("http request", fields...)
			case status >= 400:
				reqLogger.Warn("http request", fields...)
			default:
				reqLogger.Info("http request", fields...)
			}
		})
	}
}
