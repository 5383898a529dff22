package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AI 流水线指标
var (
	// AiRunsTotal 运行终态总数
	AiRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuflow_ai_runs_total",
			Help: "AI 运行终态总数",
		},
		[]string{"task", "status"},
	)

	// AiGuardSkipsTotal 守卫拦截总数
	AiGuardSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuflow_ai_guard_skips_total",
			Help: "守卫拦截导致 skipped 的次数",
		},
		[]string{"reason"},
	)

	// AiProviderRequestDuration 提供方调用延迟（秒）
	AiProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docuflow_ai_provider_request_duration_seconds",
			Help:    "AI 提供方调用延迟分布",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "task"},
	)

	// AiCostCentsTotal 已产生费用（分）
	AiCostCentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuflow_ai_cost_cents_total",
			Help: "AI 调用累计费用（分）",
		},
		[]string{"tenant_id", "provider"},
	)

	// AiCircuitOpenTotal 断路器打开计数
	AiCircuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuflow_ai_circuit_open_total",
			Help: "断路器达到阈值而打开的次数",
		},
		[]string{"tenant_id", "provider"},
	)
)
