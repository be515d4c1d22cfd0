package proxy

import (
	"artifact-proxy/internal"
	"context"
	"net/http"
)

const requestIDHeader = "X-Request-ID"

// withRequestID adds a request ID to the context (wraps internal function)
func withRequestID(ctx context.Context, requestID string) context.Context {
	return internal.WithRequestID(ctx, requestID)
}

// GetRequestID retrieves the request ID from context (wraps internal function)
func GetRequestID(ctx context.Context) string {
	return internal.GetRequestID(ctx)
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	return internal.NewID("req")
}

// requestIDMiddleware tags every request with an ID, reusing the caller's X-Request-ID
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), requestID)))
	})
}
