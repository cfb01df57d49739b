package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mliell/crowdmint/internal/app"
	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/router"
	"github.com/mliell/crowdmint/internal/scheduler"
)

func main() {
	// 加载配置
	cfg := config.Load(os.Getenv("CROWDMINT_CONFIG"))
	logger.Init(cfg.Log)
	defer logger.Sync()

	// 初始化链客户端、数据库与活动服务
	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application: %v", err)
	}
	defer a.Close()

	if cfg.Cache.WarmStart {
		if err := a.Campaigns.WarmStart(context.Background()); err != nil {
			logger.Warn("Warm start failed, starting cold: %v", err)
		}
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(a.Campaigns, a.Chain, cfg.Server)

	// 启动定时任务
	if cfg.Scheduler.Enabled {
		jobs := []scheduler.Job{
			scheduler.NewCacheRefreshJob(a.Campaigns, time.Duration(cfg.Scheduler.Interval)*time.Second),
		}
		if a.Snapshots != nil {
			jobs = append(jobs, scheduler.NewRunPruneJob(a.Snapshots, cfg.Scheduler.RunRetention))
		}
		tasks, err := scheduler.NewManager(jobs...)
		if err != nil {
			logger.Fatal("Failed to create task manager: %v", err)
		}
		tasks.Start()
		defer tasks.Stop()
	}

	// 启动服务器
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}
