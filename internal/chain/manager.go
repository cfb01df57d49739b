package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/logger"
)

// Manager 单链管理器
type Manager struct {
	mu     sync.RWMutex
	client *ethclient.Client  // 链客户端
	reader *CampaignReader    // 活动读取器
	config config.ChainConfig // 存储链配置
}

// NewManager 创建单链管理器
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	manager := &Manager{
		config: cfg,
	}

	// 初始化客户端
	if err := manager.initClient(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	// 初始化合约
	if err := manager.initContracts(cfg); err != nil {
		manager.client.Close()
		return nil, fmt.Errorf("failed to initialize contracts: %w", err)
	}

	return manager, nil
}

// initClient 初始化客户端
func (m *Manager) initClient(cfg config.ChainConfig) error {
	logger.Info("Initializing chain client (type: %s, id: %d)", cfg.ChainType, cfg.ChainId)

	client, err := m.createChainClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	logger.Info("Successfully initialized client")

	return nil
}

// initContracts 初始化工厂与活动合约
func (m *Manager) initContracts(cfg config.ChainConfig) error {
	if !common.IsHexAddress(cfg.FactoryAddress) {
		return fmt.Errorf("invalid factory address %q", cfg.FactoryAddress)
	}

	factory, err := NewContract(m.client, "factory", cfg.FactoryABIPath, factoryABI)
	if err != nil {
		return err
	}
	campaign, err := NewContract(m.client, "campaign", cfg.CampaignABI, campaignABI)
	if err != nil {
		return err
	}

	factoryAddress := common.HexToAddress(cfg.FactoryAddress)
	m.reader = NewCampaignReader(factory, factoryAddress, campaign)
	logger.Info("Initialized factory contract at %s", factoryAddress.Hex())

	return nil
}

// createChainClient 创建链客户端
func (m *Manager) createChainClient(cfg config.ChainConfig) (*ethclient.Client, error) {
	rpcUrl := cfg.RpcUrl
	if rpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	// 验证链类型，均为 EVM 兼容链
	supportedTypes := []string{"ethereum", "arc", "polygon", "bsc", "arbitrum", "optimism", "base"}
	isSupported := false
	for _, supportedType := range supportedTypes {
		if cfg.ChainType == supportedType {
			isSupported = true
			break
		}
	}
	if !isSupported {
		return nil, fmt.Errorf("unsupported chain type %s, supported types: %v", cfg.ChainType, supportedTypes)
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, rpcUrl)
	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}

	// 测试连接
	if err := m.testClientConnection(client, cfg.ChainId); err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}

	logger.Info("Successfully created %s client", cfg.ChainType)
	return client, nil
}

// testClientConnection 测试客户端连接并核对链ID
func (m *Manager) testClientConnection(client *ethclient.Client, expectedChainId int64) error {
	ctx := context.TODO()
	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	if expectedChainId == 0 {
		return nil
	}

	chainId, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if chainId.Int64() != expectedChainId {
		logger.Warn("RPC reports chain id %d, configured %d", chainId.Int64(), expectedChainId)
	}
	return nil
}

// GetReader 获取活动读取器
func (m *Manager) GetReader() *CampaignReader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reader
}

// GetChainId 获取链ID
func (m *Manager) GetChainId() int64 {
	return m.config.ChainId
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := map[string]interface{}{
		"chain_type":      m.config.ChainType,
		"chain_id":        m.config.ChainId,
		"factory_address": m.config.FactoryAddress,
		"client_status":   "connected",
	}

	if m.client == nil {
		health["client_status"] = "not_initialized"
		return health
	}

	blockNumber, err := m.client.BlockNumber(ctx)
	if err != nil {
		health["client_status"] = "disconnected"
		return health
	}
	health["block_number"] = blockNumber

	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
	}

	logger.Info("Chain manager closed")
	return nil
}
