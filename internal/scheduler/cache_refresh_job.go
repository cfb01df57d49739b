package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mliell/crowdmint/internal/logger"
)

// Refresher 由 logic.CampaignService 实现
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// CacheRefreshJob 后台刷新活动缓存，使请求路径尽量命中新鲜缓存
type CacheRefreshJob struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
}

// NewCacheRefreshJob 创建缓存刷新任务
func NewCacheRefreshJob(refresher Refresher, interval time.Duration) *CacheRefreshJob {
	return &CacheRefreshJob{
		refresher: refresher,
		interval:  interval,
		timeout:   2 * interval,
	}
}

// GetName 获取任务名称
func (j *CacheRefreshJob) GetName() string {
	return "campaign_cache_refresher"
}

// GetSchedule 获取调度配置
func (j *CacheRefreshJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CacheRefreshJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	started := time.Now()
	if !j.refresher.Refresh(ctx) {
		logger.Debug("Scheduled refresh skipped, another refresh is running")
		return
	}
	logger.Info("Scheduled campaign refresh completed in %s", time.Since(started).Round(time.Millisecond))
}
