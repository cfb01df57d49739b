package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/logic"
	"github.com/mliell/crowdmint/internal/model"
)

// CampaignService 由 logic.CampaignService 实现
type CampaignService interface {
	GetCampaigns(ctx context.Context) logic.CacheSnapshot
	Campaign(ctx context.Context, address common.Address) (*model.CampaignRecord, error)
	Featured(ctx context.Context, n int) []model.CampaignRecord
	ByCreator(ctx context.Context, creator common.Address) []model.CampaignRecord
	Donations(ctx context.Context, donor common.Address) []model.Donation
	Status() logic.CacheStatus
}

type CampaignHandler struct {
	campaignLogic CampaignService
}

func NewCampaignHandler(campaignLogic CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignLogic: campaignLogic,
	}
}

// GetCampaigns 返回缓存的活动列表，始终 200
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	snapshot := h.campaignLogic.GetCampaigns(c.Request.Context())
	c.JSON(http.StatusOK, ToCampaignsResponse(snapshot))
}

// GetCampaign 实时读取单个活动
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	address, ok := parseAddress(c, "address")
	if !ok {
		return
	}

	campaign, err := h.campaignLogic.Campaign(c.Request.Context(), address)
	if err != nil {
		logger.Warn("Failed to fetch campaign %s: %v", address.Hex(), err)
		ErrorResponse(c, http.StatusNotFound, "campaign not found")
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", GetCampaignResponse{Campaign: campaign})
}

// GetFeaturedCampaigns 已筹金额最高的活动
func (h *CampaignHandler) GetFeaturedCampaigns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(logic.DefaultFeaturedCount)))
	if err != nil || limit <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid limit")
		return
	}

	campaigns := h.campaignLogic.Featured(c.Request.Context(), limit)
	SuccessResponse(c, http.StatusOK, "ok", ListCampaignsResponse{Campaigns: campaigns})
}

// GetCreatorCampaigns 某创建者的活动
func (h *CampaignHandler) GetCreatorCampaigns(c *gin.Context) {
	creator, ok := parseAddress(c, "address")
	if !ok {
		return
	}

	campaigns := h.campaignLogic.ByCreator(c.Request.Context(), creator)
	SuccessResponse(c, http.StatusOK, "ok", ListCampaignsResponse{Campaigns: campaigns})
}

// GetDonorDonations 某地址的捐赠记录
func (h *CampaignHandler) GetDonorDonations(c *gin.Context) {
	donor, ok := parseAddress(c, "address")
	if !ok {
		return
	}

	donations := h.campaignLogic.Donations(c.Request.Context(), donor)
	SuccessResponse(c, http.StatusOK, "ok", GetDonationsResponse{
		Donor:     donor.Hex(),
		Donations: donations,
	})
}

// GetCacheStatus 缓存运行状态
func (h *CampaignHandler) GetCacheStatus(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", ToCacheStatusResponse(h.campaignLogic.Status()))
}

// parseAddress 解析路径中的地址参数，非法时写入 400
func parseAddress(c *gin.Context, param string) (common.Address, bool) {
	raw := c.Param(param)
	if !common.IsHexAddress(raw) {
		ErrorResponse(c, http.StatusBadRequest, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
