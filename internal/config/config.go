package config

import (
	"strings"
	"time"

	"github.com/mliell/crowdmint/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port      string          `mapstructure:"port"`
	Mode      string          `mapstructure:"mode"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 单客户端限流配置，RequestsPerMinute 为 0 时关闭
type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite, none
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType      string `mapstructure:"chain_type"`      // 链类型 (ethereum, arc, polygon, etc.)
	ChainId        int64  `mapstructure:"chain_id"`        // 链ID
	RpcUrl         string `mapstructure:"rpc_url"`         // RPC节点URL
	FactoryAddress string `mapstructure:"factory_address"` // 众筹工厂合约地址
	FactoryABIPath string `mapstructure:"factory_abi_path"`
	CampaignABI    string `mapstructure:"campaign_abi_path"`
}

// CacheConfig 活动缓存配置
type CacheConfig struct {
	TTL                      time.Duration `mapstructure:"ttl"`
	BatchSize                int           `mapstructure:"batch_size"`
	BatchDelay               time.Duration `mapstructure:"batch_delay"`
	RetryAttempts            int           `mapstructure:"retry_attempts"`
	RetryBackoff             time.Duration `mapstructure:"retry_backoff"`
	KeepStaleOnRegistryError bool          `mapstructure:"keep_stale_on_registry_error"`
	WarmStart                bool          `mapstructure:"warm_start"`
}

// MetadataConfig 元数据解析配置
type MetadataConfig struct {
	IPFSGateway string        `mapstructure:"ipfs_gateway"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     int           `mapstructure:"interval"` // 秒
	RunRetention time.Duration `mapstructure:"run_retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// SetDefaults 写入默认值，常量与前端缓存接口保持一致
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit.requests_per_minute", 120)
	v.SetDefault("server.rate_limit.burst", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdmint")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/crowdmint.db")

	v.SetDefault("chain.chain_type", "arc")
	v.SetDefault("chain.chain_id", 5042002)
	v.SetDefault("chain.rpc_url", "https://rpc.testnet.arc.network")

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.batch_size", 3)
	v.SetDefault("cache.batch_delay", 1500*time.Millisecond)
	v.SetDefault("cache.retry_attempts", 2)
	v.SetDefault("cache.retry_backoff", 2*time.Second)
	v.SetDefault("cache.keep_stale_on_registry_error", false)
	v.SetDefault("cache.warm_start", false)

	v.SetDefault("metadata.ipfs_gateway", "https://ipfs.io/ipfs/")
	v.SetDefault("metadata.timeout", 10*time.Second)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 300)
	v.SetDefault("scheduler.run_retention", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 加载配置；path 为空时按默认目录查找 config.yaml
func Load(path string) *Config {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/crowdmint")
	}

	SetDefaults(v)

	// 自动读取环境变量
	v.SetEnvPrefix("crowdmint")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容前端部署时使用的环境变量
	_ = v.BindEnv("chain.rpc_url", "CROWDMINT_CHAIN_RPC_URL", "NEXT_PUBLIC_RPC_URL")
	_ = v.BindEnv("chain.chain_id", "CROWDMINT_CHAIN_CHAIN_ID", "NEXT_PUBLIC_CHAIN_ID")
	_ = v.BindEnv("chain.factory_address", "CROWDMINT_CHAIN_FACTORY_ADDRESS", "NEXT_PUBLIC_FACTORY_ADDRESS")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
