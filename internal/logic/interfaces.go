package logic

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mliell/crowdmint/internal/chain"
	"github.com/mliell/crowdmint/internal/metadata"
	"github.com/mliell/crowdmint/internal/model"
)

// ChainReader 链上只读接口，由 chain.CampaignReader 实现
type ChainReader interface {
	CampaignAddresses(ctx context.Context) ([]common.Address, error)
	Details(ctx context.Context, address common.Address) (*chain.CampaignDetails, error)
	Progress(ctx context.Context, address common.Address) (*chain.CampaignProgress, error)
	Donors(ctx context.Context, address common.Address) ([]common.Address, error)
	Donation(ctx context.Context, campaign, donor common.Address) (*big.Int, error)
}

// MetadataResolver 元数据解析接口，由 metadata.Resolver 实现
type MetadataResolver interface {
	Resolve(ctx context.Context, uri string) metadata.Metadata
}

// SnapshotStore 刷新结果持久化接口，由 repository.SnapshotRepository 实现
type SnapshotStore interface {
	SaveRefresh(ctx context.Context, run *model.RefreshRunModel, campaigns []model.CampaignRecord) error
	LoadLatest(ctx context.Context, now time.Time) ([]model.CampaignRecord, time.Time, error)
}
