// Package engine orchestrates push and pull reconciliation between the
// local store and the remote collections.
//
// The engine is a small state machine over {idle, syncing}. At most one
// sync runs at a time: concurrent callers are rejected, not queued
// (single-flight), and the debounce timer naturally re-triggers later.
// Transient failures open a cooldown window during which attempts
// short-circuit without touching the network. Failures never escape the
// engine as panics or raw errors; every operation returns a structured
// Result.
package engine

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Kj20000/kidscard/internal/remote"
	"github.com/Kj20000/kidscard/internal/store"
)

// RemoteStore is the surface of the remote collections the engine needs.
// It is satisfied by *remote.Client and by test fakes.
type RemoteStore interface {
	Authenticated() bool
	UpsertCategories(ctx context.Context, rows []remote.CategoryRow) error
	UpsertFlashcards(ctx context.Context, rows []remote.FlashcardRow) error
	SelectCategories(ctx context.Context, offset, limit int) ([]remote.CategoryRow, error)
	SelectFlashcards(ctx context.Context, offset, limit int) ([]remote.FlashcardRow, error)
}

// Config controls engine behavior. The cloud-sync feature flag is an
// explicit field here rather than a process-global: the engine owner
// decides at construction time.
type Config struct {
	// Enabled gates all network activity. When false every sync returns
	// a "cloud sync disabled" result.
	Enabled bool

	// BatchSize is the number of rows per upsert request. The remote
	// transport has a practical payload ceiling, so pushes are chunked.
	BatchSize int

	// PageSize is the number of rows per select request during pull.
	PageSize int

	// Debounce is the quiet period after a local mutation before a push
	// fires. A new mutation inside the window resets the timer.
	Debounce time.Duration

	// Cooldown is how long sync attempts are suppressed after a
	// transient failure.
	Cooldown time.Duration

	// AutoSyncCooldown throttles Hydrate so repeated session events
	// (token refresh, reconnects) don't cause a sync storm.
	AutoSyncCooldown time.Duration

	// HydrateAttempts bounds how many times Hydrate retries a full sync.
	HydrateAttempts int

	// HydrateBackoff is the pause between hydrate attempts.
	HydrateBackoff time.Duration
}

// DefaultConfig returns sensible defaults with cloud sync disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		BatchSize:        50,
		PageSize:         100,
		Debounce:         2 * time.Second,
		Cooldown:         30 * time.Second,
		AutoSyncCooldown: 60 * time.Second,
		HydrateAttempts:  3,
		HydrateBackoff:   2 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.AutoSyncCooldown <= 0 {
		c.AutoSyncCooldown = d.AutoSyncCooldown
	}
	if c.HydrateAttempts <= 0 {
		c.HydrateAttempts = d.HydrateAttempts
	}
	if c.HydrateBackoff <= 0 {
		c.HydrateBackoff = d.HydrateBackoff
	}
}

// State is an ephemeral snapshot of the engine, consumed by the UI. It is
// never persisted.
type State struct {
	LastSyncedAt   *time.Time
	IsSyncing      bool
	IsOnline       bool
	PendingChanges int
}

// Result is the structured outcome of a sync operation. Err is never a
// panic or a value the caller must rethrow; permanent failures carry the
// original error, transient ones carry a reassuring Message alongside it.
type Result struct {
	Success bool
	Synced  int
	Message string
	Err     error
}

// Engine reconciles the local store with the remote collections.
type Engine struct {
	store  *store.Store
	client RemoteStore
	cfg    Config
	logger *log.Logger

	mu            sync.Mutex
	syncing       bool
	online        bool
	closed        bool
	lastSyncedAt  *time.Time
	cooldownUntil time.Time
	lastHydrate   time.Time
	pending       int
	debounce      *time.Timer
}

// New creates an engine. The store must be open; client may be nil when
// cloud sync is disabled. If logger is nil a default stderr logger is used.
func New(st *store.Store, client RemoteStore, cfg Config, logger *log.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{
		store:  st,
		client: client,
		cfg:    cfg,
		logger: logger,
		online: true,
	}
}

// SetOnline feeds the host's network-status signal into the engine. A
// transition back online schedules a push when dirty rows are waiting.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOffline := !e.online
	e.online = online
	pending := e.pending
	enabled := e.cfg.Enabled
	e.mu.Unlock()

	if online && wasOffline && enabled && pending > 0 {
		e.SchedulePush()
	}
}

// SyncState returns a snapshot of the engine's ephemeral state.
func (e *Engine) SyncState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	var last *time.Time
	if e.lastSyncedAt != nil {
		t := *e.lastSyncedAt
		last = &t
	}
	return State{
		LastSyncedAt:   last,
		IsSyncing:      e.syncing,
		IsOnline:       e.online,
		PendingChanges: e.pending,
	}
}

// RefreshPending recomputes the dirty-row count from the store. The facade
// calls this after every mutation.
func (e *Engine) RefreshPending(ctx context.Context) int {
	count, err := e.store.PendingCount(ctx)
	if err != nil {
		e.logger.Printf("Warning: failed to count pending rows: %v", err)
		return e.SyncState().PendingChanges
	}
	e.mu.Lock()
	e.pending = count
	e.mu.Unlock()
	return count
}

// SchedulePush arms the debounced push timer. Bursts of edits coalesce
// into a single network round trip: each call resets the quiet period.
func (e *Engine) SchedulePush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.cfg.Debounce, func() {
		res := e.Push(context.Background())
		if !res.Success {
			e.logger.Printf("Scheduled push did not complete: %s", res.describe())
		}
	})
}

// Close cancels pending timers. In-flight syncs run to completion; there
// is no mid-flight cancellation.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// Hydrate runs a bounded full sync on session start or refresh. Repeated
// calls inside the auto-sync cooldown are no-ops, so token refreshes don't
// storm the remote.
func (e *Engine) Hydrate(ctx context.Context) Result {
	e.mu.Lock()
	if time.Since(e.lastHydrate) < e.cfg.AutoSyncCooldown {
		e.mu.Unlock()
		return Result{Success: true, Message: "recently synced"}
	}
	e.lastHydrate = time.Now()
	e.mu.Unlock()

	var res Result
	for attempt := 1; attempt <= e.cfg.HydrateAttempts; attempt++ {
		res = e.FullSync(ctx)
		if res.Success {
			return res
		}
		if res.Err != nil && remote.Classify(res.Err) == remote.Permanent {
			return res
		}
		if attempt < e.cfg.HydrateAttempts {
			select {
			case <-ctx.Done():
				return Result{Message: "hydrate cancelled", Err: ctx.Err()}
			case <-time.After(e.cfg.HydrateBackoff):
			}
		}
	}
	return res
}

// tryBegin acquires the single-flight guard and checks the preconditions
// shared by push and pull. The returned Result is non-nil when the sync
// must not proceed; acquired reports whether the guard is held and must be
// released with end().
func (e *Engine) tryBegin() (blocked *Result, acquired bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.syncing {
		return &Result{Message: "sync already in progress"}, false
	}
	if !e.cfg.Enabled {
		return &Result{Message: "cloud sync disabled"}, false
	}
	if e.client == nil || !e.client.Authenticated() {
		return &Result{Message: "not signed in"}, false
	}
	if !e.online {
		return &Result{Message: "offline — changes saved locally"}, false
	}
	if until := e.cooldownUntil; time.Now().Before(until) {
		return &Result{Message: "sync temporarily unavailable — changes saved locally"}, false
	}

	e.syncing = true
	return nil, true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// fail classifies err, opens a cooldown for transient failures, and builds
// the caller-facing result. Permanent errors surface verbatim.
func (e *Engine) fail(op string, err error) Result {
	if remote.Classify(err) == remote.Transient {
		e.mu.Lock()
		e.cooldownUntil = time.Now().Add(e.cfg.Cooldown)
		e.mu.Unlock()
		e.logger.Printf("%s hit a transient error, cooling down %v: %v", op, e.cfg.Cooldown, err)
		return Result{
			Message: "sync temporarily unavailable — changes saved locally",
			Err:     err,
		}
	}
	e.logger.Printf("%s failed: %v", op, err)
	return Result{Message: err.Error(), Err: err}
}

func (r Result) describe() string {
	if r.Err != nil {
		return r.Message + ": " + r.Err.Error()
	}
	return r.Message
}
