package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile reads a key = value config file. Blank lines and lines starting
// with # are skipped. A missing file yields an empty map.
func LoadFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := map[string]string{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", n)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return values, sc.Err()
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
		return v[1 : len(v)-1]
	}
	return v
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Ledger
	case "ledger.url", "node":
		cfg.Ledger.URL = value
	case "ledger.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Ledger.Timeout = d

	// Wallet
	case "wallet.fee", "fee":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.Fee = n
	case "wallet.argon_memory":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.ArgonMemory = uint32(n)
	case "wallet.argon_iterations":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.ArgonIterations = uint32(n)

	// Tracker
	case "tracker.enabled", "tracker":
		cfg.Tracker.Enabled = parseBool(value)
	case "tracker.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Tracker.Interval = d
	case "tracker.cycle_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Tracker.CycleTimeout = d
	case "tracker.max_failures":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Tracker.MaxFailures = n
	case "tracker.concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Tracker.Concurrency = n
	case "tracker.rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.Tracker.Rate = f

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# Naivecoin Wallet Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.naivewallet)
# datadir = ~/.naivewallet

# ============================================================================
# Ledger node
# ============================================================================

ledger.url = ` + def.Ledger.URL + `
ledger.timeout = 10s

# ============================================================================
# Wallet
# ============================================================================

# Fee attached to every transaction
wallet.fee = 1

# Argon2id cost for sealing keys at rest (memory in KiB)
# wallet.argon_memory = 65536
# wallet.argon_iterations = 3

# ============================================================================
# Confirmation tracker
# ============================================================================

tracker.enabled = true
tracker.interval = 10s
# tracker.cycle_timeout = 30s
# tracker.max_failures = 5
# tracker.concurrency = 4
# Ledger lookups per second (0 = unlimited)
# tracker.rate = 0

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
