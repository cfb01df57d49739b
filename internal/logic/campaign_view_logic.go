package logic

import (
	"context"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/mliell/crowdmint/internal/retry"
)

// DefaultFeaturedCount 精选活动数量
const DefaultFeaturedCount = 3

// Featured 按已筹金额降序取前 n 个缓存活动
func (s *CampaignService) Featured(ctx context.Context, n int) []model.CampaignRecord {
	if n <= 0 {
		n = DefaultFeaturedCount
	}
	campaigns := s.GetCampaigns(ctx).Campaigns
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].RaisedUSDC.Cmp(campaigns[j].RaisedUSDC) > 0
	})
	if len(campaigns) > n {
		campaigns = campaigns[:n]
	}
	return campaigns
}

// ByCreator 返回某创建者的缓存活动，地址不区分大小写
func (s *CampaignService) ByCreator(ctx context.Context, creator common.Address) []model.CampaignRecord {
	result := make([]model.CampaignRecord, 0)
	for _, c := range s.GetCampaigns(ctx).Campaigns {
		if strings.EqualFold(c.Creator, creator.Hex()) {
			result = append(result, c)
		}
	}
	return result
}

// Donations 逐个缓存活动查询 donor 的捐赠金额，零金额与读取失败的活动被跳过
func (s *CampaignService) Donations(ctx context.Context, donor common.Address) []model.Donation {
	donations := make([]model.Donation, 0)
	for _, c := range s.GetCampaigns(ctx).Campaigns {
		c := c
		campaign := common.HexToAddress(c.Address)
		amount, ok := retry.Value(ctx, s.opts.Policy, func(ctx context.Context) (model.USDC, error) {
			raw, err := s.reader.Donation(ctx, campaign, donor)
			if err != nil {
				return model.USDC{}, err
			}
			return model.NewUSDC(raw), nil
		})
		if !ok {
			logger.Warn("Skipping campaign %s, donation of %s unreadable", campaign.Hex(), donor.Hex())
			continue
		}
		if amount.IsZero() {
			continue
		}
		donations = append(donations, model.Donation{
			CampaignAddress: c.Address,
			CampaignTitle:   c.Title,
			AmountUSDC:      amount,
			CampaignStatus:  model.DonationStatusOf(&c),
		})
	}
	return donations
}
