package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CampaignDetails details() 的九个返回值
type CampaignDetails struct {
	Creator         common.Address
	Goal            *big.Int
	Deadline        *big.Int // unix 秒
	AmountRaised    *big.Int
	GoalBased       bool
	Withdrawn       bool
	MetadataURI     string
	Active          bool
	MinContribution *big.Int
}

// CampaignProgress getProgress() 的返回值
type CampaignProgress struct {
	Raised     *big.Int
	Goal       *big.Int
	Percentage *big.Int
}

// CampaignReader 工厂与活动合约的只读访问
type CampaignReader struct {
	factory        *Contract
	factoryAddress common.Address
	campaign       *Contract
}

// NewCampaignReader 创建活动读取器
func NewCampaignReader(factory *Contract, factoryAddress common.Address, campaign *Contract) *CampaignReader {
	return &CampaignReader{
		factory:        factory,
		factoryAddress: factoryAddress,
		campaign:       campaign,
	}
}

// CampaignAddresses 从工厂合约读取全部活动地址
func (r *CampaignReader) CampaignAddresses(ctx context.Context) ([]common.Address, error) {
	if r.factoryAddress == (common.Address{}) {
		return nil, fmt.Errorf("factory contract address not configured")
	}
	out, err := r.factory.Call(ctx, r.factoryAddress, "getCampaigns")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// Details 读取活动详情
func (r *CampaignReader) Details(ctx context.Context, address common.Address) (*CampaignDetails, error) {
	out, err := r.campaign.Call(ctx, address, "details")
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		Creator:         *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Goal:            *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Deadline:        *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		AmountRaised:    *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		GoalBased:       *abi.ConvertType(out[4], new(bool)).(*bool),
		Withdrawn:       *abi.ConvertType(out[5], new(bool)).(*bool),
		MetadataURI:     *abi.ConvertType(out[6], new(string)).(*string),
		Active:          *abi.ConvertType(out[7], new(bool)).(*bool),
		MinContribution: *abi.ConvertType(out[8], new(*big.Int)).(**big.Int),
	}, nil
}

// Progress 读取筹款进度
func (r *CampaignReader) Progress(ctx context.Context, address common.Address) (*CampaignProgress, error) {
	out, err := r.campaign.Call(ctx, address, "getProgress")
	if err != nil {
		return nil, err
	}

	return &CampaignProgress{
		Raised:     *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Goal:       *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Percentage: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
	}, nil
}

// Donors 读取捐赠者地址列表，同一地址多次捐赠会重复出现
func (r *CampaignReader) Donors(ctx context.Context, address common.Address) ([]common.Address, error) {
	out, err := r.campaign.Call(ctx, address, "getDonors")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// Donation 读取某捐赠者在活动中的累计金额
func (r *CampaignReader) Donation(ctx context.Context, campaign, donor common.Address) (*big.Int, error) {
	out, err := r.campaign.Call(ctx, campaign, "donations", donor)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
