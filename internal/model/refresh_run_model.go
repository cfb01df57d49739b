package model

import (
	"time"
)

// RefreshRunModel 一次缓存刷新的执行记录
type RefreshRunModel struct {
	Id            string    `json:"id" gorm:"primaryKey;size:36"`
	StartedAt     time.Time `json:"started_at" gorm:"index"`
	FinishedAt    time.Time `json:"finished_at"`
	AddressCount  int       `json:"address_count"`
	CampaignCount int       `json:"campaign_count"`
	FailedCount   int       `json:"failed_count"`
	RegistryError string    `json:"registry_error" gorm:"type:text"`
	DurationMs    int64     `json:"duration_ms"`
}

// TableName 自定义表名
func (RefreshRunModel) TableName() string {
	return "refresh_run"
}
