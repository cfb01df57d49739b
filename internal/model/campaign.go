package model

import (
	"time"
)

// CampaignRecord 链上活动状态与元数据的合并视图
type CampaignRecord struct {
	// 链上身份
	Address string `json:"address"`
	Creator string `json:"creator"`

	// 链下元数据
	Title            string  `json:"title"`
	ShortDescription string  `json:"shortDescription"`
	LongDescription  *string `json:"longDescription,omitempty"`
	ImageURL         *string `json:"imageUrl,omitempty"`
	Category         *string `json:"category,omitempty"`

	// 金额信息
	GoalUSDC            USDC `json:"goalUsdc"`
	RaisedUSDC          USDC `json:"raisedUsdc"`
	MinContributionUSDC USDC `json:"minContributionUsdc"`
	GoalBased           bool `json:"goalBased"`
	Withdrawn           bool `json:"withdrawn"`

	// 时间与状态
	Deadline       time.Time      `json:"deadline"`
	IsActive       bool           `json:"isActive"`
	IsExpired      bool           `json:"isExpired"`
	HasReachedGoal bool           `json:"hasReachedGoal"`
	Status         CampaignStatus `json:"status"`

	// 捐赠记录条数，未去重
	BackersCount int `json:"backersCount"`

	MetadataURI string `json:"-"`
}

// Refresh 按给定时间重新计算派生字段
func (c *CampaignRecord) Refresh(now time.Time) {
	c.IsExpired = c.Deadline.Unix() < now.Unix()
	c.HasReachedGoal = c.RaisedUSDC.Cmp(c.GoalUSDC) >= 0
	c.Status = ComputeStatus(StatusInput{
		Withdrawn:      c.Withdrawn,
		IsExpired:      c.IsExpired,
		IsActive:       c.IsActive,
		HasReachedGoal: c.HasReachedGoal,
	})
}

// Donation 某地址对某活动的捐赠
type Donation struct {
	CampaignAddress string         `json:"campaignAddress"`
	CampaignTitle   string         `json:"campaignTitle"`
	AmountUSDC      USDC           `json:"amountUsdc"`
	CampaignStatus  DonationStatus `json:"campaignStatus"`
}
