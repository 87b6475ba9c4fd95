// Package config handles wallet configuration.
//
// Values come from, in increasing precedence: built-in defaults, the
// naivewallet.conf file in the data directory, and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies which ledger deployment the wallet talks to.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds the wallet's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Ledger node
	Ledger LedgerConfig

	// Wallet
	Wallet WalletConfig

	// Confirmation tracker
	Tracker TrackerConfig

	// Logging
	Log LogConfig
}

// LedgerConfig holds the naivecoin node settings.
type LedgerConfig struct {
	URL     string        `conf:"ledger.url"`
	Timeout time.Duration `conf:"ledger.timeout"`
}

// WalletConfig holds spending and key-sealing settings.
type WalletConfig struct {
	Fee             uint64 `conf:"wallet.fee"`
	ArgonMemory     uint32 `conf:"wallet.argon_memory"` // KiB
	ArgonIterations uint32 `conf:"wallet.argon_iterations"`
}

// TrackerConfig holds the confirmation tracker settings.
type TrackerConfig struct {
	Enabled      bool          `conf:"tracker.enabled"`
	Interval     time.Duration `conf:"tracker.interval"`
	CycleTimeout time.Duration `conf:"tracker.cycle_timeout"`
	MaxFailures  int           `conf:"tracker.max_failures"`
	Concurrency  int           `conf:"tracker.concurrency"`
	Rate         float64       `conf:"tracker.rate"` // lookups per second, 0 = unlimited
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.naivewallet
//	macOS:   ~/Library/Application Support/NaiveWallet
//	Windows: %APPDATA%\NaiveWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".naivewallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "NaiveWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "NaiveWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "NaiveWallet")
	default:
		return filepath.Join(home, ".naivewallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the wallet database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "naivewallet.conf")
}
