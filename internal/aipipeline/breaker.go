package aipipeline

import (
	"context"
	"fmt"
	"time"

	"docuflow/internal/metrics"
)

// CircuitBreaker 按 (租户, 提供方) 维度的断路器
// 连续失败计数达到阈值后打开（拦截后续调用），冷却窗口过后计数器过期，
// 断路器随之闭合。这是刻意保留的两态断路器（闭合/打开），不实现半开态。
type CircuitBreaker struct {
	store     CounterStore
	threshold int
	cooldown  time.Duration
}

// NewCircuitBreaker 创建断路器
func NewCircuitBreaker(store CounterStore, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &CircuitBreaker{store: store, threshold: threshold, cooldown: cooldown}
}

// RecordFailure 记录一次失败，计数器与冷却 TTL 一起写入
func (b *CircuitBreaker) RecordFailure(ctx context.Context, tenantID string, provider Provider) error {
	count, err := b.store.IncrementWithExpiry(ctx, b.key(tenantID, provider), b.cooldown)
	if err != nil {
		return fmt.Errorf("记录失败计数失败: %w", err)
	}
	if count == int64(b.threshold) {
		metrics.AiCircuitOpenTotal.WithLabelValues(tenantID, string(provider)).Inc()
	}
	return nil
}

// RecordSuccess 清除失败计数，断路器立即闭合
func (b *CircuitBreaker) RecordSuccess(ctx context.Context, tenantID string, provider Provider) error {
	return b.store.Delete(ctx, b.key(tenantID, provider))
}

// IsOpen 判断断路器是否打开
// 仅当计数器存在且 ≥ 阈值时为打开；存储读取失败时视为闭合，
// 守卫精度的轻微损失不影响数据完整性
func (b *CircuitBreaker) IsOpen(ctx context.Context, tenantID string, provider Provider) bool {
	count, err := b.store.Get(ctx, b.key(tenantID, provider))
	if err != nil {
		return false
	}
	return count >= int64(b.threshold)
}

func (b *CircuitBreaker) key(tenantID string, provider Provider) string {
	return fmt.Sprintf("circuit:%s:%s", tenantID, provider)
}
