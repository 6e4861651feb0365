package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	// inbound ids longer than this are replaced rather than propagated
	maxRequestIDLen = 64
)

// RequestID propagates or mints a request id and attaches it to the
// request-scoped log entry.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" || len(reqID) > maxRequestIDLen {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
