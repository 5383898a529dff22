package aipipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	ctx := context.Background()
	b := NewCircuitBreaker(NewMemoryCounterStore(), 3, time.Minute)

	require.False(t, b.IsOpen(ctx, "t1", ProviderOpenAI))

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.False(t, b.IsOpen(ctx, "t1", ProviderOpenAI))

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.True(t, b.IsOpen(ctx, "t1", ProviderOpenAI))
}

func TestBreakerScopedByTenantAndProvider(t *testing.T) {
	ctx := context.Background()
	b := NewCircuitBreaker(NewMemoryCounterStore(), 2, time.Minute)

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))

	require.True(t, b.IsOpen(ctx, "t1", ProviderOpenAI))
	require.False(t, b.IsOpen(ctx, "t1", ProviderGemini))
	require.False(t, b.IsOpen(ctx, "t2", ProviderOpenAI))
}

func TestBreakerSuccessCloses(t *testing.T) {
	ctx := context.Background()
	b := NewCircuitBreaker(NewMemoryCounterStore(), 2, time.Minute)

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.True(t, b.IsOpen(ctx, "t1", ProviderOpenAI))

	require.NoError(t, b.RecordSuccess(ctx, "t1", ProviderOpenAI))
	require.False(t, b.IsOpen(ctx, "t1", ProviderOpenAI))
}

func TestBreakerCooldownExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewCircuitBreaker(NewRedisCounterStore(client), 2, time.Minute)

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderGemini))
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderGemini))
	require.True(t, b.IsOpen(ctx, "t1", ProviderGemini))

	// 冷却窗口过后计数器过期，断路器自动闭合
	mr.FastForward(2 * time.Minute)
	require.False(t, b.IsOpen(ctx, "t1", ProviderGemini))
}

func TestBreakerFailureRefreshesCooldown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewCircuitBreaker(NewRedisCounterStore(client), 3, time.Minute)

	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	mr.FastForward(30 * time.Second)

	// 新的失败刷新 TTL，计数继续累积
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.NoError(t, b.RecordFailure(ctx, "t1", ProviderOpenAI))
	require.True(t, b.IsOpen(ctx, "t1", ProviderOpenAI))

	mr.FastForward(30 * time.Second)
	require.True(t, b.IsOpen(ctx, "t1", ProviderOpenAI))
}
