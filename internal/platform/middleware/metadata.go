package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"healthpass/pkg/requestcontext"
)

// RequestMetadata stamps each request with an ID and a fixed observation
// time. Every time comparison downstream reads the same instant, so a proof
// cannot flip between valid and expired within one request.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
