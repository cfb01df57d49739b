package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository 刷新记录与活动快照的持久化
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveRefresh 记录一次刷新；注册表失败的刷新不覆盖已有快照
func (r *SnapshotRepository) SaveRefresh(ctx context.Context, run *model.RefreshRunModel, campaigns []model.CampaignRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to save refresh run: %w", err)
		}
		if run.RegistryError != "" {
			return nil
		}

		if err := tx.Where("1 = 1").Delete(&model.CampaignSnapshotModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear campaign snapshot: %w", err)
		}
		if len(campaigns) == 0 {
			return nil
		}

		rows := make([]model.CampaignSnapshotModel, 0, len(campaigns))
		for i := range campaigns {
			rows = append(rows, model.NewCampaignSnapshotModel(run.Id, i, run.FinishedAt, &campaigns[i]))
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to save campaign snapshot: %w", err)
		}
		return nil
	})
}

// LoadLatest 加载当前快照及其抓取时间；无快照时时间为零值
func (r *SnapshotRepository) LoadLatest(ctx context.Context, now time.Time) ([]model.CampaignRecord, time.Time, error) {
	run, err := r.latestSuccessfulRun(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if run == nil {
		return nil, time.Time{}, nil
	}

	var rows []model.CampaignSnapshotModel
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load campaign snapshot: %w", err)
	}

	campaigns := make([]model.CampaignRecord, 0, len(rows))
	for i := range rows {
		record, err := rows[i].ToRecord(now)
		if err != nil {
			logger.Warn("Skipping unreadable snapshot row %s: %v", rows[i].Address, err)
			continue
		}
		campaigns = append(campaigns, record)
	}
	return campaigns, run.FinishedAt, nil
}

// LatestRuns 最近的刷新记录
func (r *SnapshotRepository) LatestRuns(ctx context.Context, limit int) ([]model.RefreshRunModel, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []model.RefreshRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load refresh runs: %w", err)
	}
	return runs, nil
}

// latestSuccessfulRun 当前快照所属的刷新记录，没有时为 nil
func (r *SnapshotRepository) latestSuccessfulRun(ctx context.Context) (*model.RefreshRunModel, error) {
	var run model.RefreshRunModel
	err := r.db.WithContext(ctx).
		Where("registry_error = ?", "").
		Order("finished_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest refresh run: %w", err)
	}
	return &run, nil
}

// PruneRuns 删除早于 before 的刷新记录，当前快照所属的记录始终保留
func (r *SnapshotRepository) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	keep, err := r.latestSuccessfulRun(ctx)
	if err != nil {
		return 0, err
	}

	query := r.db.WithContext(ctx).Where("started_at < ?", before)
	if keep != nil {
		query = query.Where("id <> ?", keep.Id)
	}
	result := query.Delete(&model.RefreshRunModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune refresh runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
