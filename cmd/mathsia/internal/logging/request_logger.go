package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
)

// RequestLoggerConfig holds configuration for request logging middleware.
type RequestLoggerConfig struct {
	Logger *Logger

	// SkipPaths are paths that should not be logged.
	SkipPaths []string
}

// RequestLogger is middleware that assigns a request ID to every request
// and logs method, path, status, duration, and size on completion.
type RequestLogger struct {
	config    RequestLoggerConfig
	skipPaths map[string]bool
}

// NewRequestLogger creates a new request logging middleware.
func NewRequestLogger(cfg RequestLoggerConfig) *RequestLogger {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}
	return &RequestLogger{config: cfg, skipPaths: skipPaths}
}

// Middleware returns the HTTP middleware function.
func (rl *RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(constants.HeaderRequestID, requestID)
		r = r.WithContext(SetRequestID(r.Context(), requestID))

		if rl.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger := rl.config.Logger.WithContext(r.Context())
		event := logger.Zerolog().Info()
		if rw.statusCode >= 500 {
			event = logger.Zerolog().Error()
		} else if rw.statusCode >= 400 {
			event = logger.Zerolog().Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Int("bytes", rw.bytesWritten).
			Str("remote_addr", r.RemoteAddr).
			Msg("Request completed")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}
