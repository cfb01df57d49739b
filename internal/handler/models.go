package handler

import (
	"github.com/mliell/crowdmint/internal/logic"
	"github.com/mliell/crowdmint/internal/model"
)

// CampaignsResponse GET /api/campaigns 响应，时间均为毫秒
type CampaignsResponse struct {
	Campaigns  []model.CampaignRecord `json:"campaigns"`
	Cached     bool                   `json:"cached"`
	Timestamp  int64                  `json:"timestamp"`
	TTL        int64                  `json:"ttl"`
	NextUpdate int64                  `json:"nextUpdate"`
}

// GetCampaignResponse 单个活动响应
type GetCampaignResponse struct {
	Campaign *model.CampaignRecord `json:"campaign"`
}

// ListCampaignsResponse 活动列表响应
type ListCampaignsResponse struct {
	Campaigns []model.CampaignRecord `json:"campaigns"`
}

// GetDonationsResponse 捐赠列表响应
type GetDonationsResponse struct {
	Donor     string           `json:"donor"`
	Donations []model.Donation `json:"donations"`
}

// RefreshRunResponse 刷新记录响应模型
type RefreshRunResponse struct {
	Id            string `json:"id"`
	StartedAt     int64  `json:"startedAt"`
	FinishedAt    int64  `json:"finishedAt"`
	AddressCount  int    `json:"addressCount"`
	CampaignCount int    `json:"campaignCount"`
	FailedCount   int    `json:"failedCount"`
	RegistryError string `json:"registryError,omitempty"`
	DurationMs    int64  `json:"durationMs"`
}

// CacheStatusResponse 缓存状态响应
type CacheStatusResponse struct {
	Populated  bool                `json:"populated"`
	InFlight   bool                `json:"inFlight"`
	Campaigns  int                 `json:"campaigns"`
	Timestamp  int64               `json:"timestamp,omitempty"`
	AgeMs      int64               `json:"ageMs"`
	TTL        int64               `json:"ttl"`
	NextUpdate int64               `json:"nextUpdate,omitempty"`
	LastRun    *RefreshRunResponse `json:"lastRun,omitempty"`
}

// 转换函数

// ToCampaignsResponse 将缓存快照转换为响应模型
func ToCampaignsResponse(snapshot logic.CacheSnapshot) CampaignsResponse {
	campaigns := snapshot.Campaigns
	if campaigns == nil {
		campaigns = []model.CampaignRecord{}
	}
	return CampaignsResponse{
		Campaigns:  campaigns,
		Cached:     true,
		Timestamp:  snapshot.Timestamp.UnixMilli(),
		TTL:        snapshot.TTL.Milliseconds(),
		NextUpdate: snapshot.NextUpdate.UnixMilli(),
	}
}

// ToRefreshRunResponse 将刷新记录转换为响应模型
func ToRefreshRunResponse(run *model.RefreshRunModel) *RefreshRunResponse {
	if run == nil {
		return nil
	}
	return &RefreshRunResponse{
		Id:            run.Id,
		StartedAt:     run.StartedAt.UnixMilli(),
		FinishedAt:    run.FinishedAt.UnixMilli(),
		AddressCount:  run.AddressCount,
		CampaignCount: run.CampaignCount,
		FailedCount:   run.FailedCount,
		RegistryError: run.RegistryError,
		DurationMs:    run.DurationMs,
	}
}

// ToCacheStatusResponse 将缓存状态转换为响应模型
func ToCacheStatusResponse(status logic.CacheStatus) CacheStatusResponse {
	resp := CacheStatusResponse{
		Populated: status.Populated,
		InFlight:  status.InFlight,
		Campaigns: status.Campaigns,
		AgeMs:     status.Age.Milliseconds(),
		TTL:       status.TTL.Milliseconds(),
		LastRun:   ToRefreshRunResponse(status.LastRun),
	}
	if status.Populated {
		resp.Timestamp = status.Timestamp.UnixMilli()
		resp.NextUpdate = status.NextUpdate.UnixMilli()
	}
	return resp
}
