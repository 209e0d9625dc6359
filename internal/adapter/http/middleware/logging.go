package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/infrastructure/logger"
)

// CorrelationIDHeader carries the caller's correlation id.
const CorrelationIDHeader = "X-Correlation-ID"

// LoggingMiddleware logs HTTP requests and scopes a request logger into the context.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps an http.Handler with logging. It must run after chi's RequestID
// middleware so the request id is available.
func (m *LoggingMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		if requestID := chimiddleware.GetReqID(ctx); requestID != "" {
			ctx = logger.WithRequestID(ctx, requestID)
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)
		}

		if correlationID := r.Header.Get(CorrelationIDHeader); correlationID != "" {
			ctx = logger.WithCorrelationID(ctx, correlationID)
			w.Header().Set(CorrelationIDHeader, correlationID)
		}

		reqLogger := logger.WithContext(ctx, m.logger)
		ctx = reqLogger.WithContext(ctx)

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		event := reqLogger.Info()
		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			event = reqLogger.Error()
		case wrapped.statusCode >= http.StatusBadRequest:
			event = reqLogger.Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request completed")
	})
}

type statusRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
