package app

import (
	"fmt"

	"github.com/mliell/crowdmint/internal/chain"
	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/logic"
	"github.com/mliell/crowdmint/internal/metadata"
	"github.com/mliell/crowdmint/internal/metrics"
	"github.com/mliell/crowdmint/internal/repository"
	"gorm.io/gorm"
)

// App 进程内共享的依赖
type App struct {
	Config    *config.Config
	Chain     *chain.Manager
	DB        *gorm.DB
	Snapshots *repository.SnapshotRepository
	Campaigns *logic.CampaignService
}

// New 按配置初始化链客户端、数据库与活动服务
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	manager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain manager: %w", err)
	}
	a.Chain = manager

	db, err := repository.Init(cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if db != nil {
		a.DB = db
		a.Snapshots = repository.NewSnapshotRepository(db)
	} else {
		logger.Info("Persistence disabled, refresh runs are kept in memory only")
	}

	service, err := logic.NewCampaignService(
		manager.GetReader(),
		metadata.NewResolver(cfg.Metadata.IPFSGateway, cfg.Metadata.Timeout),
		ServiceOptions(cfg, a.Snapshots),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Campaigns = service

	return a, nil
}

// ServiceOptions 由配置构造缓存服务参数
func ServiceOptions(cfg *config.Config, snapshots *repository.SnapshotRepository) logic.Options {
	opts := logic.DefaultOptions(chain.IsRateLimited)
	opts.TTL = cfg.Cache.TTL
	opts.BatchSize = cfg.Cache.BatchSize
	opts.BatchDelay = cfg.Cache.BatchDelay
	opts.KeepStaleOnRegistryError = cfg.Cache.KeepStaleOnRegistryError
	if cfg.Cache.RetryAttempts > 0 {
		opts.Policy.Attempts = cfg.Cache.RetryAttempts
	}
	if cfg.Cache.RetryBackoff > 0 {
		opts.Policy.Backoff = cfg.Cache.RetryBackoff
	}
	opts.Metrics = metrics.Cache()
	if snapshots != nil {
		opts.Store = snapshots
	}
	return opts
}

// Close 释放全部资源
func (a *App) Close() {
	if a.Campaigns != nil {
		a.Campaigns.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Chain != nil {
		_ = a.Chain.Close()
	}
}
