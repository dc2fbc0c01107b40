// Package config 负责加载 lotteryd 在启动阶段需要的运行时配置。
// 合约地址与链 ID 等部署常量定义在 constants.go 中，不在此处读取。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"LottoChain/pkg/logger"
)

// Config 描述了 lotteryd 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Web3    Web3Config    `json:"web3"`
	Wallet  WalletConfig  `json:"wallet"`
	Storage StorageConfig `json:"storage"`
	Events  EventsConfig  `json:"events"`
	Logging logger.Config `json:"logging"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig 控制 HTTP 展示层的监听地址与访问令牌。
type ServerConfig struct {
	Address string `json:"address"`
	// AuthTokenEnv 指向保存 API 令牌的环境变量，令牌为空时不做认证。
	AuthTokenEnv string `json:"auth_token_env"`
	// MetricsAddress 非空时在独立端口暴露 Prometheus 指标。
	MetricsAddress string `json:"metrics_address"`
}

// AuthToken 返回写接口需要的 Bearer 令牌。
func (s ServerConfig) AuthToken() string {
	if s.AuthTokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(s.AuthTokenEnv))
}

// Web3Config 描述链端点的来源。
type Web3Config struct {
	// ChainConfig 指向 YAML 格式的链定义文件。
	ChainConfig string `json:"chain_config"`
	// RPCURL 在未提供链定义文件时作为唯一端点使用。
	RPCURL string `json:"rpc_url"`
}

// WalletConfig 描述本地钱包的密钥来源。
type WalletConfig struct {
	Enabled       bool     `json:"enabled"`
	PrivateKeys   []string `json:"private_keys"`
	PrivateKeyEnv string   `json:"private_key_env"`
	KeystoreDir   string   `json:"keystore_dir"`
	PassphraseEnv string   `json:"passphrase_env"`
	// AutoApprove 为 false 时每次授权请求都需要控制台确认。
	AutoApprove bool `json:"auto_approve"`
}

// StorageConfig 描述交易历史的存储方式。
type StorageConfig struct {
	History HistoryStoreConfig `json:"history"`
}

// HistoryStoreConfig 支持 memory（本地文件）与 mysql 两种驱动。
type HistoryStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// EventsConfig 描述状态快照与交易事件的发布渠道。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 发布端的连接参数。
type RedisConfig struct {
	Address      string `json:"address"`
	Password     string `json:"password"`
	DB           int    `json:"db"`
	Channel      string `json:"channel"`
	HistoryKey   string `json:"history_key"`
	HistoryLimit int64  `json:"history_limit"`
}

// RabbitMQConfig 描述 RabbitMQ 发布端的连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
	Durable  bool   `json:"durable"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回未提供配置文件时使用的配置。
func Default() *Config {
	cfg := &Config{Web3: Web3Config{RPCURL: "http://127.0.0.1:8545"}}
	cfg.applyDefaults(".")
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.AuthTokenEnv == "" {
		c.Server.AuthTokenEnv = "LOTTERY_API_TOKEN"
	}

	if c.Storage.History.Driver == "" {
		c.Storage.History.Driver = "memory"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.Redis.Channel == "" {
		c.Events.Redis.Channel = "lottery:events"
	}
	if c.Events.Redis.HistoryKey == "" {
		c.Events.Redis.HistoryKey = "lottery:events:recent"
	}
	if c.Events.Redis.HistoryLimit <= 0 {
		c.Events.Redis.HistoryLimit = 100
	}
	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "lottery.events"
	}

	if c.Wallet.PassphraseEnv == "" {
		c.Wallet.PassphraseEnv = "LOTTERY_KEYSTORE_PASSPHRASE"
	}

	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	c.Wallet.KeystoreDir = resolve(baseDir, c.Wallet.KeystoreDir)

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}
}

// Validate 检查互斥与必填字段。
func (c *Config) Validate() error {
	switch c.Storage.History.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.History.DSN) == "" {
			return errors.New("history 存储使用 mysql 时必须配置 dsn")
		}
	default:
		return fmt.Errorf("未知的 history 存储驱动: %s", c.Storage.History.Driver)
	}

	switch c.Events.Driver {
	case "memory", "none":
	case "redis":
		if strings.TrimSpace(c.Events.Redis.Address) == "" {
			return errors.New("events 使用 redis 时必须配置 address")
		}
	case "rabbitmq":
		if strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
			return errors.New("events 使用 rabbitmq 时必须配置 url")
		}
	default:
		return fmt.Errorf("未知的 events 驱动: %s", c.Events.Driver)
	}

	if strings.TrimSpace(c.Web3.ChainConfig) == "" && strings.TrimSpace(c.Web3.RPCURL) == "" {
		return errors.New("必须配置 chain_config 或 rpc_url")
	}
	return nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
