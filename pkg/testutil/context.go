package testutil

import (
	"context"
	"net/http"
	"time"

	"equitrail/pkg/requestcontext"
)

// WithActor stamps an acting principal on the request context, simulating
// what the admin auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), actor)
	return req.WithContext(ctx)
}

// WithRequestID stamps a correlation ID on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// ContextAt returns a context whose clock is frozen at the given instant so
// time-dependent behavior is deterministic in tests.
func ContextAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}
