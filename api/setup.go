package api

import (
	"docuflow/api/handlers/aiconfig"
	"docuflow/api/handlers/airuns"
	"docuflow/api/handlers/events"
	"docuflow/internal/aipipeline"
	"docuflow/internal/aipipeline/gateway"
	"docuflow/internal/config"
	"docuflow/internal/infra"
	"docuflow/internal/infra/queue"
	"docuflow/internal/logger"
	middlewarepkg "docuflow/internal/middleware"
	"docuflow/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// AppContainer 汇总横切依赖，供路由注册使用
type AppContainer struct {
	DB          *gorm.DB
	RateLimiter *middlewarepkg.ActionRateLimiter
}

// Handlers 汇总所有 HTTP 处理器
type Handlers struct {
	Config *aiconfig.Handler
	Runs   *airuns.Handler
	Events *events.Handler
}

// SetupRouter 组装全部服务并返回 Gin 路由和 Worker 服务器
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server, error) {
	router := gin.New()

	// Redis：熔断计数、限流窗口、asynq 队列共用一套配置
	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	queueClient := queue.NewClient(cfg.Redis)

	// 流水线核心组件
	configStore := aipipeline.NewConfigStore(db)
	quota := aipipeline.NewQuotaTracker(db)
	breaker := aipipeline.NewCircuitBreaker(
		aipipeline.NewRedisCounterStore(redisClient),
		cfg.Pipeline.BreakerThreshold,
		cfg.Pipeline.BreakerCooldownDuration(),
	)
	aiGateway := gateway.New()

	executor := aipipeline.NewExecutor(db, configStore, quota, breaker, aiGateway, logger.Get())
	dispatcher := aipipeline.NewDispatcher(db, configStore, queueClient, cfg.Pipeline.PromptVersion, logger.Get())
	service := aipipeline.NewService(db, configStore, dispatcher, logger.Get())
	retention := aipipeline.NewRetentionService(db, cfg.Pipeline.OutputRetentionDuration(), logger.Get())

	rateLimiter := middlewarepkg.NewActionRateLimiter(
		redisClient,
		cfg.Pipeline.ActionRateLimit,
		cfg.Pipeline.ActionRateWindowDuration(),
	)

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())

	// 探针与指标
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	container := &AppContainer{
		DB:          db,
		RateLimiter: rateLimiter,
	}
	handlers := &Handlers{
		Config: aiconfig.NewHandler(configStore),
		Runs:   airuns.NewHandler(service),
		Events: events.NewHandler(dispatcher),
	}

	RegisterRoutes(router, container, handlers)

	workerServer := worker.NewServer(cfg, executor, retention, logger.Get())

	return router, workerServer, nil
}
