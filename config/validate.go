package config

import (
	"fmt"
	"strings"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if cfg.Exchange == "" {
		return ErrInvalid("exchange is required")
	}
	if cfg.DefaultPair == "" && len(cfg.Pairs) == 0 {
		return ErrInvalid("defaultPair or pairs is required")
	}
	for _, p := range append([]string{cfg.DefaultPair}, cfg.Pairs...) {
		if p != "" && !strings.Contains(p, "/") {
			return ErrInvalid(fmt.Sprintf("pair %q must look like BASE/QUOTE", p))
		}
	}
	if cfg.Gateway.BaseURL == "" {
		return ErrInvalid("gateway.baseURL is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return ErrInvalid("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Gateway.TimeoutMs < 0 || cfg.Gateway.RateLimit < 0 || cfg.Gateway.Burst < 0 {
		return ErrInvalid("gateway timeoutMs/rateLimit/burst must be >= 0")
	}
	if !cfg.Store.InMemory && cfg.Store.Path == "" {
		return ErrInvalid("store.path is required unless store.inMemory is set")
	}
	if err := validateCollector(cfg.Collector); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return ErrInvalid("metrics.addr is required when metrics are enabled")
	}
	if cfg.Alert.ThrottleSec < 0 {
		return ErrInvalid("alert.throttleSec must be >= 0")
	}
	if cfg.Alert.WebhookURL != "" && !strings.HasPrefix(cfg.Alert.WebhookURL, "http") {
		return ErrInvalid("alert.webhookURL must be an http(s) url")
	}
	for sym, sc := range cfg.Symbols {
		if sc.TickSize < 0 || sc.StepSize < 0 {
			return ErrInvalid(fmt.Sprintf("symbol %s tickSize/stepSize must be >= 0", sym))
		}
		if sc.MinQty < 0 || sc.MaxQty < 0 || sc.MinNotional < 0 {
			return ErrInvalid(fmt.Sprintf("symbol %s qty/notional bounds must be >= 0", sym))
		}
		if sc.MaxQty > 0 && sc.MinQty > sc.MaxQty {
			return ErrInvalid(fmt.Sprintf("symbol %s minQty > maxQty", sym))
		}
	}
	return nil
}

func validateCollector(c CollectorConfig) error {
	if c.MaxTries < 0 {
		return ErrInvalid("collector.maxTries must be >= 0")
	}
	if c.SweepIntervalSec < 0 {
		return ErrInvalid("collector.sweepIntervalSec must be >= 0")
	}
	switch c.SweepMode {
	case "", "unknown", "all":
	default:
		return ErrInvalid(fmt.Sprintf("collector.sweepMode %q must be unknown or all", c.SweepMode))
	}
	return nil
}
