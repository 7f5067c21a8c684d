package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// HeaderXRequestID is the header carrying the request id, inbound or
// outbound.
const HeaderXRequestID = "X-Request-Id"

// RequestID echoes the caller-supplied X-Request-Id or mints a UUID, and
// stores it under chi's own context key so chimw.GetReqID keeps working
// for any handler or middleware that expects it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		w.Header().Set(HeaderXRequestID, reqID)

		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
