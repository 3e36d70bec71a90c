package reqid

import (
	"context"
	"math/rand/v2"
	"strconv"
)

// Header carries the request ID to the upstream server.
const Header = "X-Request-Id"

type ctxKey struct{}

// NewContext attaches a fresh random request ID to parent and returns both.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64()
	return context.WithValue(parent, ctxKey{}, id), id
}

// FromContext reports the request ID attached by NewContext, if any.
func FromContext(ctx context.Context) (id int64, ok bool) {
	id, ok = ctx.Value(ctxKey{}).(int64)
	return
}

// String formats the request ID stored in ctx, or "" when there is none.
func String(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
