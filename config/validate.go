package config

import (
	"fmt"
	"net/url"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}

	u, err := url.Parse(cfg.Ledger.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ledger.url must be an http(s) URL, got %q", cfg.Ledger.URL)
	}
	if cfg.Ledger.Timeout <= 0 {
		return fmt.Errorf("ledger.timeout must be positive")
	}

	if cfg.Wallet.ArgonIterations == 0 {
		return fmt.Errorf("wallet.argon_iterations must be positive")
	}
	if cfg.Wallet.ArgonMemory < 32 {
		return fmt.Errorf("wallet.argon_memory must be at least 32 KiB")
	}

	t := cfg.Tracker
	if t.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be positive")
	}
	if t.CycleTimeout <= 0 {
		return fmt.Errorf("tracker.cycle_timeout must be positive")
	}
	if t.MaxFailures < 1 {
		return fmt.Errorf("tracker.max_failures must be at least 1")
	}
	if t.Concurrency < 1 {
		return fmt.Errorf("tracker.concurrency must be at least 1")
	}
	if t.Rate < 0 {
		return fmt.Errorf("tracker.rate must not be negative")
	}

	switch cfg.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}
