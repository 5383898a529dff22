package worker

import (
	"context"
	"fmt"

	"docuflow/internal/config"
	"docuflow/internal/worker/handlers"
	"docuflow/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

func NewServer(
	cfg *config.Config,
	executor handlers.RunExecutor,
	purger handlers.OutputPurger,
	logger *zap.Logger,
) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Pipeline.WorkerConcurrency,
			Queues: map[string]int{
				"ai":      6, // AI 运行优先
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	aiHandler := handlers.NewAiHandler(executor, purger, logger)
	mux.HandleFunc(tasks.TypeExecuteAiRun, aiHandler.HandleExecuteRun)
	mux.HandleFunc(tasks.TypePurgeAiOutputs, aiHandler.HandlePurgeOutputs)

	// 周期任务：每小时清理一次保留期外的产出
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register("@every 1h", asynq.NewTask(tasks.TypePurgeAiOutputs, nil)); err != nil {
		logger.Error("注册周期清理任务失败", zap.Error(err))
	}

	return &Server{
		server:    srv,
		scheduler: scheduler,
		mux:       mux,
		logger:    logger,
	}
}

// Run 启动 Worker 服务器（阻塞）
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("启动周期任务调度失败: %w", err)
	}
	return s.server.Run(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.scheduler.Shutdown()
	s.server.Shutdown()
}
