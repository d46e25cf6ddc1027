package middleware

import (
	"net/http"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type ErrorHandler struct {
	handler http.Handler
	log     logger.Logger
}

// WithErrorHandler logs every request that ends with a 5xx status. Client
// errors are already logged where they are detected.
func WithErrorHandler(log logger.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &ErrorHandler{handler: h, log: log}
	}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	eh.handler.ServeHTTP(rec, r)

	if rec.status >= http.StatusInternalServerError {
		eh.log.Error("request processing failed",
			logger.StringField("method", r.Method),
			logger.StringField("path", r.URL.Path),
			logger.IntField("status", rec.status),
			logger.DurationField("duration", time.Since(start)),
		)
	}
}
