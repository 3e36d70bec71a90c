package reqid

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewContextStoresID(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)
	require.Equal(t, strconv.FormatInt(id, 10), String(ctx))

	_, other := NewContext(context.Background())
	require.NotEqual(t, id, other)
}

func TestEmptyContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.Empty(t, String(context.Background()))
}
