// Package tracker reconciles locally pending transactions with the ledger
// and reports the ones that made it into a block.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Klingon-tech/naivecoin-wallet/internal/ledger"
	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
)

// Defaults.
const (
	DefaultInterval     = 10 * time.Second
	DefaultCycleTimeout = 30 * time.Second
	DefaultMaxFailures  = 5
	DefaultConcurrency  = 4
	DefaultBackoffBase  = time.Second
	DefaultBackoffMax   = time.Minute

	notificationBuffer = 100
)

var (
	// ErrRetriesExhausted is reported once the tracker gives up.
	ErrRetriesExhausted = errors.New("confirmation tracker gave up")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("confirmation tracker already started")
)

// PendingStore is the local side of reconciliation.
type PendingStore interface {
	Pending() ([]string, error)
	// MarkConfirmed reports whether the call moved id from pending to
	// confirmed.
	MarkConfirmed(id string) (bool, error)
}

// BlockSource looks up the block containing a transaction. It returns
// ledger.ErrNotInBlock while the transaction is unconfirmed.
type BlockSource interface {
	BlockTransactionIDs(ctx context.Context, txID string) ([]string, error)
}

// Config controls polling.
type Config struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	// MaxFailures is the number of consecutive failed cycles after which
	// the tracker stops.
	MaxFailures int
	// Concurrency caps in-flight lookups per cycle.
	Concurrency int
	// Rate limits lookups per second. Zero means unlimited.
	Rate        float64
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Ticker overrides the interval ticker.
	Ticker ticker.Ticker
}

// DefaultConfig returns the polling defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		CycleTimeout: DefaultCycleTimeout,
		MaxFailures:  DefaultMaxFailures,
		Concurrency:  DefaultConcurrency,
		BackoffBase:  DefaultBackoffBase,
		BackoffMax:   DefaultBackoffMax,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = d.CycleTimeout
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = d.MaxFailures
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
}

// Tracker polls the ledger for pending transactions.
type Tracker struct {
	cfg     Config
	store   PendingStore
	ledger  BlockSource
	limiter *rate.Limiter
	ticker  ticker.Ticker
	ntfns   *queue.ConcurrentQueue

	status atomic.Int32

	mu  sync.Mutex
	err error

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	stopped   bool
	quit      chan struct{}
	done      chan struct{}
}

// New creates a tracker. The notification queue is live immediately, so
// Poll can be used without Start.
func New(cfg Config, store PendingStore, src BlockSource) *Tracker {
	cfg.applyDefaults()
	t := &Tracker{
		cfg:    cfg,
		store:  store,
		ledger: src,
		ticker: cfg.Ticker,
		ntfns:  queue.NewConcurrentQueue(notificationBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if t.ticker == nil {
		t.ticker = ticker.New(cfg.Interval)
	}
	if cfg.Rate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Concurrency)
	}
	t.ntfns.Start()
	return t
}

// Start runs the polling loop until ctx is canceled, Stop is called or the
// retry budget is spent. The first cycle runs immediately.
func (t *Tracker) Start(ctx context.Context) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	if t.cancel != nil || t.stopped {
		return ErrAlreadyStarted
	}
	ctx, t.cancel = context.WithCancel(ctx)

	t.ticker.Resume()
	go t.run(ctx)

	log.Tracker.Info().
		Dur("interval", t.cfg.Interval).
		Int("max_failures", t.cfg.MaxFailures).
		Msg("Confirmation tracker started")
	return nil
}

// Stop ends the polling loop and the notification queue. Notifications
// not yet drained may be lost.
func (t *Tracker) Stop() {
	t.lifecycle.Lock()
	if t.stopped {
		t.lifecycle.Unlock()
		return
	}
	t.stopped = true
	close(t.quit)
	cancel := t.cancel
	t.lifecycle.Unlock()

	if cancel != nil {
		cancel()
		<-t.done
	} else {
		t.status.Store(int32(Stopped))
	}
	t.ntfns.Stop()
}

// Done is closed when the polling loop exits.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Status returns the current state of the loop.
func (t *Tracker) Status() Status {
	return Status(t.status.Load())
}

// Err returns the last cycle error, or nil.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// Notifications delivers the id of each newly confirmed transaction.
func (t *Tracker) Notifications() <-chan interface{} {
	return t.ntfns.ChanOut()
}

// Drain returns the confirmations available right now without blocking.
func (t *Tracker) Drain() []string {
	var ids []string
	for {
		select {
		case v := <-t.ntfns.ChanOut():
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		default:
			return ids
		}
	}
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	defer t.ticker.Stop()

	failures := 0
	for {
		t.status.Store(int32(Polling))
		_, err := t.Poll(ctx)
		if ctx.Err() != nil {
			t.status.Store(int32(Stopped))
			log.Tracker.Info().Msg("Confirmation tracker stopped")
			return
		}

		if err != nil {
			failures++
			if failures >= t.cfg.MaxFailures {
				t.setErr(fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, err))
				t.status.Store(int32(Failed))
				log.Tracker.Error().Err(err).Int("attempts", failures).Msg("Confirmation tracker stopped after repeated failures")
				return
			}
			t.setErr(err)
			delay := backoff(t.cfg.BackoffBase, t.cfg.BackoffMax, failures)
			log.Tracker.Warn().Err(err).Int("attempt", failures).Dur("retry_in", delay).Msg("Confirmation cycle failed")

			t.status.Store(int32(Idle))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				t.status.Store(int32(Stopped))
				return
			}
		}

		failures = 0
		t.setErr(nil)
		t.status.Store(int32(Idle))
		select {
		case <-t.ticker.Ticks():
		case <-ctx.Done():
			t.status.Store(int32(Stopped))
			log.Tracker.Info().Msg("Confirmation tracker stopped")
			return
		}
	}
}

// backoff returns base * 2^(attempt-1), capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

// Poll runs one reconciliation cycle and returns the ids it confirmed.
// Every lookup finishes before any record is updated. A transaction id is
// published only when this cycle moved it to confirmed, and only while the
// tracker has not been stopped.
func (t *Tracker) Poll(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CycleTimeout)
	defer cancel()

	pending, err := t.store.Pending()
	if err != nil {
		return nil, fmt.Errorf("read pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	found, err := t.lookup(ctx, pending)
	if err != nil {
		return nil, err
	}

	var confirmed []string
	for _, id := range pending {
		if _, ok := found[id]; !ok {
			continue
		}
		changed, err := t.store.MarkConfirmed(id)
		if err != nil {
			return confirmed, fmt.Errorf("confirm %s: %w", id, err)
		}
		if !changed {
			continue
		}
		confirmed = append(confirmed, id)
		l := log.WithTx(log.Tracker, id)
		l.Info().Msg("Transaction confirmed")

		select {
		case t.ntfns.ChanIn() <- id:
		case <-t.quit:
		case <-ctx.Done():
			return confirmed, ctx.Err()
		}
	}

	log.Tracker.Debug().
		Int("pending", len(pending)).
		Int("confirmed", len(confirmed)).
		Msg("Confirmation cycle done")
	return confirmed, nil
}

// lookup fetches the block of every pending id and returns the union of
// transaction ids seen in those blocks.
func (t *Tracker) lookup(ctx context.Context, pending []string) (map[string]struct{}, error) {
	results := make([][]string, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Concurrency)
	for i, id := range pending {
		g.Go(func() error {
			if t.limiter != nil {
				if err := t.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			ids, err := t.ledger.BlockTransactionIDs(gctx, id)
			if errors.Is(err, ledger.ErrNotInBlock) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("lookup %s: %w", id, err)
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make(map[string]struct{})
	for _, ids := range results {
		for _, id := range ids {
			found[id] = struct{}{}
		}
	}
	return found, nil
}
