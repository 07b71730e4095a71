package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"market-maker-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string                  `yaml:"env"`
	Exchange    string                  `yaml:"exchange"`
	Account     string                  `yaml:"account"` // 空表示主账户
	DefaultPair string                  `yaml:"defaultPair"`
	Pairs       []string                `yaml:"pairs"` // 定时清理的交易对
	Gateway     GatewayConfig           `yaml:"gateway"`
	Store       StoreConfig             `yaml:"store"`
	Collector   CollectorConfig         `yaml:"collector"`
	Log         logger.Config           `yaml:"log"`
	Metrics     MetricsConfig           `yaml:"metrics"`
	Alert       AlertConfig             `yaml:"alert"`
	Symbols     map[string]SymbolConfig `yaml:"symbols"`
}

type GatewayConfig struct {
	APIKey            string  `yaml:"apiKey"`
	APISecret         string  `yaml:"apiSecret"`
	BaseURL           string  `yaml:"baseURL"`
	TimeoutMs         int     `yaml:"timeoutMs"`
	RateLimit         float64 `yaml:"rateLimit"` // 每秒请求数
	Burst             int     `yaml:"burst"`
	UnknownOrderCodes []int   `yaml:"unknownOrderCodes"`
}

type StoreConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"inMemory"`
	SyncWrites bool   `yaml:"syncWrites"`
}

// CollectorConfig 清理器参数，支持热更新。
type CollectorConfig struct {
	MaxTries         int    `yaml:"maxTries"`
	Force            bool   `yaml:"force"`
	SweepIntervalSec int    `yaml:"sweepIntervalSec"`
	SweepMode        string `yaml:"sweepMode"` // unknown / all
	StatusSync       bool   `yaml:"statusSync"`
}

// SweepInterval returns the sweep interval, zero when unset.
func (c CollectorConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AlertConfig 清理失败告警。日志通道总是开启，webhook 可选。
type AlertConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WebhookURL  string `yaml:"webhookURL"`
	ThrottleSec int    `yaml:"throttleSec"` // 同一交易对重复告警的最小间隔
}

// SymbolConfig 保存交易对的精度/名义限制，下单前校验。
type SymbolConfig struct {
	TickSize    float64 `yaml:"tickSize"`
	StepSize    float64 `yaml:"stepSize"`
	MinQty      float64 `yaml:"minQty"`
	MaxQty      float64 `yaml:"maxQty"`
	MinNotional float64 `yaml:"minNotional"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TB_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("TB_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func parse(path string) (AppConfig, error) {
	cfg := AppConfig{Log: logger.DefaultConfig()}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}
