package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Ledger
	LedgerURL     string
	LedgerTimeout time.Duration

	// Wallet
	Fee uint64

	// Tracker
	Tracker         bool
	TrackerInterval time.Duration

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args: the command and its arguments.
	Args []string

	// Explicitly-set flags (for zero/false overrides).
	SetFee     bool
	SetTracker bool
	SetLogJSON bool
}

// ParseFlags parses global flags from args (without the program name).
// Parsing stops at the first non-flag argument, which starts the command.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("naivewallet", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Ledger
	fs.StringVar(&f.LedgerURL, "ledger", "", "Naivecoin node URL")
	fs.DurationVar(&f.LedgerTimeout, "ledger-timeout", 0, "Per-request timeout")

	// Wallet
	fs.Uint64Var(&f.Fee, "fee", 0, "Transaction fee")

	// Tracker
	fs.BoolVar(&f.Tracker, "tracker", true, "Track confirmations in the background")
	fs.DurationVar(&f.TrackerInterval, "tracker-interval", 0, "Confirmation poll interval")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	f.SetFee = isFlagSet(fs, "fee")
	f.SetTracker = isFlagSet(fs, "tracker")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Ledger
	if f.LedgerURL != "" {
		cfg.Ledger.URL = f.LedgerURL
	}
	if f.LedgerTimeout != 0 {
		cfg.Ledger.Timeout = f.LedgerTimeout
	}

	// Wallet
	if f.SetFee {
		cfg.Wallet.Fee = f.Fee
	}

	// Tracker
	if f.SetTracker {
		cfg.Tracker.Enabled = f.Tracker
	}
	if f.TrackerInterval != 0 {
		cfg.Tracker.Interval = f.TrackerInterval
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Usage is the global help text.
const Usage = `Naivecoin Wallet - password-derived key chain for naivecoin

Usage:
  naivewallet [options] <command> [arguments]

Commands:
  create                       Create a wallet (prompts for a password)
  new-address                  Derive the next address
  addresses                    List addresses
  balance [address]            Show ledger balance of one or all addresses
  send <from> <to> <amount>    Build, sign and submit a transaction
  history                      List submitted transactions
  link <link-url>              Link the wallet to a shop cart
  watch                        Follow confirmations until interrupted
  shell                        Interactive shell

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.naivewallet)
  --config, -c    Config file path (default: <datadir>/naivewallet.conf)

Ledger Options:
  --ledger          Naivecoin node URL (mainnet: http://localhost:3001)
  --ledger-timeout  Per-request timeout (default: 10s)

Wallet Options:
  --fee           Transaction fee (default: 1)

Tracker Options:
  --tracker           Track confirmations in the background (default: true)
  --tracker-interval  Poll interval (default: 10s)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/naivewallet.log)
  --log-json      Output logs as JSON

Environment:
  NAIVEWALLET_PASSWORD  Wallet password for non-interactive use
`

// Load loads configuration from args with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.DBDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
