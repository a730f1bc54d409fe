package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"

	// correlationHeader carries the trace ID end to end, from the caller that
	// enqueued a notification through the logs of its delivery.
	correlationHeader = "X-Correlation-ID"
)

// CorrelationID tags every request with a trace ID. An inbound header value
// is honored so upstream services can correlate their own logs with ours;
// requests arriving without one get a fresh UUID. The ID is echoed on the
// response and stored on the context for the request logger.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)

		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the request's trace ID, or an empty string when
// the middleware is not in the chain.
func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
