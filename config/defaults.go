package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Ledger: LedgerConfig{
			URL:     "http://localhost:3001",
			Timeout: 10 * time.Second,
		},
		Wallet: WalletConfig{
			Fee:             1,
			ArgonMemory:     64 * 1024,
			ArgonIterations: 3,
		},
		Tracker: TrackerConfig{
			Enabled:      true,
			Interval:     10 * time.Second,
			CycleTimeout: 30 * time.Second,
			MaxFailures:  5,
			Concurrency:  4,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Ledger.URL = "http://localhost:3002"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
