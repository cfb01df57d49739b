package logic

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mliell/crowdmint/internal/chain"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/mliell/crowdmint/internal/retry"
	"golang.org/x/sync/errgroup"
)

// FetchStage 单个活动抓取失败的阶段
type FetchStage string

const (
	StageDetails  FetchStage = "details"
	StageProgress FetchStage = "progress"
	StagePanic    FetchStage = "panic"
)

// FetchError 单个活动抓取失败
type FetchError struct {
	Address common.Address
	Stage   FetchStage
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch campaign %s (%s): %v", e.Address.Hex(), e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CampaignFetcher 读取单个活动的链上状态与元数据
type CampaignFetcher struct {
	reader   ChainReader
	resolver MetadataResolver
	policy   retry.Policy
	now      func() time.Time
}

// NewCampaignFetcher 创建活动抓取器
func NewCampaignFetcher(reader ChainReader, resolver MetadataResolver, policy retry.Policy, now func() time.Time) *CampaignFetcher {
	if now == nil {
		now = time.Now
	}
	return &CampaignFetcher{
		reader:   reader,
		resolver: resolver,
		policy:   policy,
		now:      now,
	}
}

// readWithRetry 带重试读取，panic 转为错误
func readWithRetry[T any](ctx context.Context, p retry.Policy, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during read: %v", r)
		}
	}()
	return retry.Do(ctx, p, op)
}

// Fetch 抓取单个活动；details 或 progress 失败时返回 FetchError，不输出部分记录
func (f *CampaignFetcher) Fetch(ctx context.Context, address common.Address) (record *model.CampaignRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = &FetchError{Address: address, Stage: StagePanic, Err: fmt.Errorf("%v", r)}
		}
	}()

	var (
		details     *chain.CampaignDetails
		detailsErr  error
		progressErr error
		donors      []common.Address
		donorsErr   error
	)

	var g errgroup.Group
	g.Go(func() error {
		details, detailsErr = readWithRetry(ctx, f.policy, func(ctx context.Context) (*chain.CampaignDetails, error) {
			return f.reader.Details(ctx, address)
		})
		return nil
	})
	g.Go(func() error {
		_, progressErr = readWithRetry(ctx, f.policy, func(ctx context.Context) (*chain.CampaignProgress, error) {
			return f.reader.Progress(ctx, address)
		})
		return nil
	})
	g.Go(func() error {
		donors, donorsErr = readWithRetry(ctx, f.policy, func(ctx context.Context) ([]common.Address, error) {
			return f.reader.Donors(ctx, address)
		})
		return nil
	})
	_ = g.Wait()

	if detailsErr == nil && details == nil {
		detailsErr = fmt.Errorf("empty details response")
	}
	if detailsErr != nil {
		return nil, &FetchError{Address: address, Stage: StageDetails, Err: detailsErr}
	}
	if progressErr != nil {
		return nil, &FetchError{Address: address, Stage: StageProgress, Err: progressErr}
	}
	if donorsErr != nil {
		logger.Debug("Donor list unavailable for campaign %s, backers count defaults to 0: %v", address.Hex(), donorsErr)
	}

	md := f.resolver.Resolve(ctx, details.MetadataURI)

	record = &model.CampaignRecord{
		Address:             address.Hex(),
		Creator:             details.Creator.Hex(),
		Title:               md.Title,
		ShortDescription:    md.ShortDescription,
		LongDescription:     md.LongDescription,
		ImageURL:            md.ImageURL,
		Category:            md.Category,
		GoalUSDC:            model.NewUSDC(details.Goal),
		RaisedUSDC:          model.NewUSDC(details.AmountRaised),
		MinContributionUSDC: model.NewUSDC(details.MinContribution),
		GoalBased:           details.GoalBased,
		Withdrawn:           details.Withdrawn,
		Deadline:            deadlineTime(details),
		IsActive:            details.Active,
		BackersCount:        len(donors),
		MetadataURI:         details.MetadataURI,
	}
	record.Refresh(f.now())

	return record, nil
}

// maxDeadline 可表示（且可 JSON 编码）的最晚截止时间，超出的链上值按此截断
var maxDeadline = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// deadlineTime 将链上 unix 秒转换为时间
func deadlineTime(details *chain.CampaignDetails) time.Time {
	if details.Deadline == nil || details.Deadline.Sign() < 0 {
		return time.Unix(0, 0).UTC()
	}
	if details.Deadline.Cmp(big.NewInt(maxDeadline.Unix())) > 0 {
		return maxDeadline
	}
	return time.Unix(details.Deadline.Int64(), 0).UTC()
}
