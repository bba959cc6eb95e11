package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/authgate/internal/logging"
)

// handlerFunc is an endpoint that receives a request-scoped logger.
type handlerFunc func(w http.ResponseWriter, r *http.Request, log logging.Logger)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID tags every request with a fresh request id, hands the
// endpoint a child logger carrying it, and logs the outcome.
func (h *Handler) withRequestID(next handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.logger.With("request_id", uuid.NewString())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next(rec, r, log)

		log.Info(r.Context(), "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}
