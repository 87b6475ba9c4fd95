// Package app wires the wallet, its stores, the ledger client and the
// confirmation tracker into one object shared by every front end.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/naivecoin-wallet/config"
	"github.com/Klingon-tech/naivecoin-wallet/internal/ledger"
	klog "github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/internal/storage"
	"github.com/Klingon-tech/naivecoin-wallet/internal/tracker"
	"github.com/Klingon-tech/naivecoin-wallet/internal/txstore"
	"github.com/Klingon-tech/naivecoin-wallet/internal/wallet"
)

var (
	// ErrNoWallet is returned by operations that need an open wallet.
	ErrNoWallet = errors.New("no wallet open")
	// ErrWalletExists is returned when creating a wallet for a password
	// that already has one.
	ErrWalletExists = errors.New("wallet already exists for this password")
)

// App is an initialized wallet process.
type App struct {
	cfg     *config.Config
	logger  zerolog.Logger
	ownsLog bool

	db      storage.DB
	wallets *wallet.Store
	txs     *txstore.Store
	ledger  *ledger.Client
	tracker *tracker.Tracker

	mu sync.Mutex
	w  *wallet.Wallet
}

// Open initializes logging, opens the badger database under the data
// directory and builds the App on top of it.
func Open(cfg *config.Config) (*App, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(cfg.LogsDir(), "naivewallet.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	klog.App.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	a, err := New(cfg, db)
	if err != nil {
		db.Close()
		klog.Close()
		return nil, err
	}
	a.ownsLog = true
	return a, nil
}

// New builds an App on an already open database. The App owns db and
// closes it in Close.
func New(cfg *config.Config, db storage.DB) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	params := wallet.DefaultParams()
	params.Memory = cfg.Wallet.ArgonMemory
	params.Iterations = cfg.Wallet.ArgonIterations
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("wallet encryption params: %w", err)
	}

	client := ledger.NewWithTimeout(cfg.Ledger.URL, cfg.Ledger.Timeout)
	txs := txstore.New(db)

	tcfg := tracker.DefaultConfig()
	tcfg.Interval = cfg.Tracker.Interval
	tcfg.CycleTimeout = cfg.Tracker.CycleTimeout
	tcfg.MaxFailures = cfg.Tracker.MaxFailures
	tcfg.Concurrency = cfg.Tracker.Concurrency
	tcfg.Rate = cfg.Tracker.Rate

	a := &App{
		cfg:     cfg,
		logger:  klog.WithComponent("app"),
		db:      db,
		wallets: wallet.NewStore(db, params),
		txs:     txs,
		ledger:  client,
		tracker: tracker.New(tcfg, txs, client),
	}

	a.logger.Info().
		Str("network", string(cfg.Network)).
		Str("ledger", client.BaseURL()).
		Uint64("fee", cfg.Wallet.Fee).
		Msg("Wallet initialized")
	return a, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Start launches the confirmation tracker when it is enabled.
func (a *App) Start(ctx context.Context) error {
	if !a.cfg.Tracker.Enabled {
		a.logger.Info().Msg("Confirmation tracker disabled")
		return nil
	}
	return a.tracker.Start(ctx)
}

// Close stops the tracker, locks the open wallet and closes the database.
func (a *App) Close() error {
	a.tracker.Stop()

	a.mu.Lock()
	if a.w != nil {
		a.w.Lock()
		a.w = nil
	}
	a.mu.Unlock()

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	a.logger.Info().Msg("Wallet closed")
	if a.ownsLog {
		return klog.Close()
	}
	return nil
}

// Tracker returns the confirmation tracker.
func (a *App) Tracker() *tracker.Tracker {
	return a.tracker
}

// Notifications delivers the id of every transaction confirmed by the
// tracker.
func (a *App) Notifications() <-chan interface{} {
	return a.tracker.Notifications()
}

// Drain returns confirmations queued since the last call without blocking.
func (a *App) Drain() []string {
	return a.tracker.Drain()
}
