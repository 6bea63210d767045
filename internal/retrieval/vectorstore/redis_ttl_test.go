package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *RedisTTLRegistry {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTTLRegistry(client, "")
}

func TestRedisTTLRegistryRegisterAndList(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, reg.Register(ctx, "ephemeral-1", expires))

	regs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "ephemeral-1", regs[0].Collection)
	assert.Equal(t, expires.Unix(), regs[0].ExpiresAt.Unix())
}

func TestRedisTTLRegistryRemove(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	require.NoError(t, reg.Register(ctx, "ephemeral-1", time.Now().Add(time.Hour)))
	require.NoError(t, reg.Remove(ctx, "ephemeral-1"))

	regs, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)
}
