package events

import (
	"context"
	"net/http"
	"time"
)

// HTTPStart is emitted when the proxy receives a request. The event context
// carries the request ID.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the response was written. Forwarded reports
// whether the request reached the upstream server.
type HTTPFinish struct {
	Request   *http.Request
	Status    int
	Forwarded bool
	Duration  time.Duration
}

type operationKey struct{}

// WithOperation marks ctx as belonging to the i-th operation of a request.
// Single requests use index 0.
func WithOperation(ctx context.Context, i int) context.Context {
	return context.WithValue(ctx, operationKey{}, i)
}

// Operation returns the operation index stored in ctx, or 0.
func Operation(ctx context.Context) int {
	i, _ := ctx.Value(operationKey{}).(int)
	return i
}
