package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 IntentChain 在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	Ledger     LedgerConfig     `json:"ledger"`
	Classifier ClassifierConfig `json:"classifier"`
	Directory  DirectoryConfig  `json:"directory"`
	Sessions   SessionConfig    `json:"sessions"`
	History    HistoryConfig    `json:"history"`
	Events     EventsConfig     `json:"events"`
	Logging    LoggingConfig    `json:"logging"`
	Runtime    RuntimeConfig    `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// LedgerConfig 描述访问 Hedera 网络所需的信息。操作员凭证只允许通过
// 环境变量注入，配置文件里只保存变量名。
type LedgerConfig struct {
	Network               string `json:"network"`
	OperatorIDEnv         string `json:"operator_id_env"`
	OperatorKeyEnv        string `json:"operator_key_env"`
	ReceiptTimeoutSeconds int    `json:"receipt_timeout_seconds"`
	SwapRouter            string `json:"swap_router"`
}

// ClassifierConfig 用于配置意图分类服务的调用方式。
type ClassifierConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述 OpenAI 兼容接口的连接参数。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// DirectoryConfig 指向联系人与代币目录文件。
type DirectoryConfig struct {
	Path string `json:"path"`
}

// SessionConfig 描述会话挂起状态的存储方式。
type SessionConfig struct {
	Driver    string             `json:"driver"`
	MaxRounds int                `json:"max_rounds"`
	Redis     RedisSessionConfig `json:"redis"`
}

// RedisSessionConfig 描述 Redis 会话存储的连接参数。
type RedisSessionConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	KeyPrefix  string `json:"key_prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// HistoryConfig 描述对话执行记录的持久化方式。
type HistoryConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// EventsConfig 描述执行结果事件的发布方式。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 事件发布的连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// LoggingConfig 控制日志输出行为。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志输出。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
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

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Ledger.Network == "" {
		c.Ledger.Network = "testnet"
	}
	if c.Ledger.OperatorIDEnv == "" {
		c.Ledger.OperatorIDEnv = "HEDERA_OPERATOR_ID"
	}
	if c.Ledger.OperatorKeyEnv == "" {
		c.Ledger.OperatorKeyEnv = "HEDERA_OPERATOR_KEY"
	}
	if c.Ledger.ReceiptTimeoutSeconds <= 0 {
		c.Ledger.ReceiptTimeoutSeconds = 30
	}

	if c.Classifier.Provider == "" {
		c.Classifier.Provider = "openai"
	}
	if c.Classifier.OpenAI.APIKeyEnv == "" && c.Classifier.OpenAI.APIKey == "" {
		c.Classifier.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Classifier.OpenAI.TimeoutSeconds <= 0 {
		c.Classifier.OpenAI.TimeoutSeconds = 30
	}

	if c.Directory.Path != "" && !filepath.IsAbs(c.Directory.Path) {
		c.Directory.Path = filepath.Join(baseDir, c.Directory.Path)
	}

	if c.Sessions.Driver == "" {
		c.Sessions.Driver = "memory"
	}
	if c.Sessions.MaxRounds <= 0 {
		c.Sessions.MaxRounds = 5
	}
	if c.Sessions.Redis.KeyPrefix == "" {
		c.Sessions.Redis.KeyPrefix = "intentchain:sessions"
	}
	if c.Sessions.Redis.TTLSeconds <= 0 {
		c.Sessions.Redis.TTLSeconds = 1800
	}

	if c.History.Driver == "" {
		c.History.Driver = "file"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "intentchain.outcomes"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
