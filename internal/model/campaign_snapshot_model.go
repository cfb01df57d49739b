package model

import (
	"time"
)

// CampaignSnapshotModel 最近一次成功刷新得到的活动快照
// 状态与是否过期不入库，加载时重新计算
type CampaignSnapshotModel struct {
	Address   string    `json:"address" gorm:"primaryKey;size:42"`
	RunId     string    `json:"run_id" gorm:"size:36;index"`
	Position  int       `json:"position"`
	FetchedAt time.Time `json:"fetched_at"`

	Creator          string  `json:"creator" gorm:"size:42;index"`
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description" gorm:"type:text"`
	LongDescription  *string `json:"long_description" gorm:"type:text"`
	ImageURL         *string `json:"image_url"`
	Category         *string `json:"category"`
	MetadataURI      string  `json:"metadata_uri" gorm:"type:text"`

	Goal            string    `json:"goal"`
	Raised          string    `json:"raised"`
	MinContribution string    `json:"min_contribution"`
	GoalBased       bool      `json:"goal_based"`
	Withdrawn       bool      `json:"withdrawn"`
	Active          bool      `json:"active"`
	Deadline        time.Time `json:"deadline"`
	BackersCount    int       `json:"backers_count"`
}

// TableName 自定义表名
func (CampaignSnapshotModel) TableName() string {
	return "campaign_snapshot"
}

// NewCampaignSnapshotModel 由缓存记录构造快照
func NewCampaignSnapshotModel(runId string, position int, fetchedAt time.Time, c *CampaignRecord) CampaignSnapshotModel {
	return CampaignSnapshotModel{
		Address:          c.Address,
		RunId:            runId,
		Position:         position,
		FetchedAt:        fetchedAt,
		Creator:          c.Creator,
		Title:            c.Title,
		ShortDescription: c.ShortDescription,
		LongDescription:  c.LongDescription,
		ImageURL:         c.ImageURL,
		Category:         c.Category,
		MetadataURI:      c.MetadataURI,
		Goal:             c.GoalUSDC.String(),
		Raised:           c.RaisedUSDC.String(),
		MinContribution:  c.MinContributionUSDC.String(),
		GoalBased:        c.GoalBased,
		Withdrawn:        c.Withdrawn,
		Active:           c.IsActive,
		Deadline:         c.Deadline,
		BackersCount:     c.BackersCount,
	}
}

// ToRecord 还原为缓存记录并按 now 重新计算派生字段
func (m *CampaignSnapshotModel) ToRecord(now time.Time) (CampaignRecord, error) {
	goal, err := ParseUSDC(m.Goal)
	if err != nil {
		return CampaignRecord{}, err
	}
	raised, err := ParseUSDC(m.Raised)
	if err != nil {
		return CampaignRecord{}, err
	}
	minContribution, err := ParseUSDC(m.MinContribution)
	if err != nil {
		return CampaignRecord{}, err
	}

	record := CampaignRecord{
		Address:             m.Address,
		Creator:             m.Creator,
		Title:               m.Title,
		ShortDescription:    m.ShortDescription,
		LongDescription:     m.LongDescription,
		ImageURL:            m.ImageURL,
		Category:            m.Category,
		GoalUSDC:            goal,
		RaisedUSDC:          raised,
		MinContributionUSDC: minContribution,
		GoalBased:           m.GoalBased,
		Withdrawn:           m.Withdrawn,
		Deadline:            m.Deadline,
		IsActive:            m.Active,
		BackersCount:        m.BackersCount,
		MetadataURI:         m.MetadataURI,
	}
	record.Refresh(now)
	return record, nil
}
