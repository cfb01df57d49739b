package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mliell/crowdmint/internal/logger"
)

// RunPruner 由 repository.SnapshotRepository 实现
type RunPruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// RunPruneJob 清理过期的刷新记录
type RunPruneJob struct {
	pruner    RunPruner
	retention time.Duration
	now       func() time.Time
}

// NewRunPruneJob 创建刷新记录清理任务
func NewRunPruneJob(pruner RunPruner, retention time.Duration) *RunPruneJob {
	return &RunPruneJob{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
	}
}

// GetName 获取任务名称
func (j *RunPruneJob) GetName() string {
	return "refresh_run_pruner"
}

// GetSchedule 获取调度配置
func (j *RunPruneJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Hour)
}

// Execute 执行任务
func (j *RunPruneJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.pruner.PruneRuns(ctx, j.now().Add(-j.retention))
	if err != nil {
		logger.Error("Failed to prune refresh runs: %v", err)
		return
	}
	if deleted > 0 {
		logger.Info("Pruned %d refresh runs older than %s", deleted, j.retention)
	}
}
