// Package daemon builds inkwell's components from configuration and runs
// their background loops.
package daemon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/app/ledger"
	"github.com/inkwell-notes/inkwell/internal/app/milestones"
	"github.com/inkwell-notes/inkwell/internal/app/notes"
	"github.com/inkwell-notes/inkwell/internal/app/notify"
	"github.com/inkwell-notes/inkwell/internal/app/syncer"
	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/connectivity"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	kvmemory "github.com/inkwell-notes/inkwell/internal/infra/kv/memory"
	kvredis "github.com/inkwell-notes/inkwell/internal/infra/kv/redis"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
	remotememory "github.com/inkwell-notes/inkwell/internal/infra/remote/memory"
	"github.com/inkwell-notes/inkwell/internal/infra/remote/surreal"
	"github.com/inkwell-notes/inkwell/internal/infra/sqlite"
)

// App holds every component. Construct with New, run loops with Start,
// release with Close.
type App struct {
	Config Config
	Log    *zap.Logger

	Bus          *eventbus.Bus
	DB           *sqlite.DB
	KV           domain.KVStore
	Tracer       *observability.Tracer
	Notify       *notify.Center
	Notes        *notes.Store
	Milestones   *milestones.Service
	Ledger       *ledger.Ledger
	Sync         *syncer.Coordinator
	Connectivity *connectivity.Monitor

	syncTimeout time.Duration
	closers     []func() error

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New wires components. On error everything opened so far is released.
func New(cfg Config, log *zap.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:      cfg,
		Log:         logging.OrNop(log),
		Bus:         eventbus.New(),
		syncTimeout: parseDuration(cfg.Sync.Timeout, 30*time.Second),
	}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	a.DB, err = sqlite.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	if a.KV, err = a.openKV(); err != nil {
		return nil, err
	}

	remote, err := a.openRemote()
	if err != nil {
		return nil, err
	}

	a.Tracer = observability.NewTracer(observability.TracerConfig{Enabled: true, MaxSpans: cfg.Sync.TraceSpans})

	nc := notify.DefaultConfig()
	nc.DedupWindow = parseDuration(cfg.Notifications.DedupWindow, nc.DedupWindow)
	nc.ToastTTL = parseDuration(cfg.Notifications.ToastTTL, nc.ToastTTL)
	if cfg.Notifications.MaxRecords > 0 {
		nc.MaxRecords = cfg.Notifications.MaxRecords
	}
	a.Notify = notify.New(nc, a.KV, a.Bus, a.Log)
	a.closers = append(a.closers, func() error { a.Notify.Close(); return nil })

	a.Notes = notes.New(a.DB, remote, a.Bus, a.Log)

	var rewards domain.RewardsSource
	if cfg.Rewards.Milestones {
		a.Milestones, err = milestones.New(a.DB, milestones.DefaultRules(), a.Bus, a.Log)
		if err != nil {
			return nil, err
		}
		rewards = a.Milestones
	}

	loc, _ := cfg.Rewards.location()
	a.Ledger = ledger.New(ledger.Config{Policy: cfg.Rewards.Policy(), Location: loc}, a.KV, rewards, a.Notify, a.Bus, a.Log)

	if a.Milestones != nil {
		detach := a.Milestones.Attach(a.Bus, a.Notes, a.Ledger)
		a.closers = append(a.closers, func() error { detach(); return nil })
	}

	a.Sync = syncer.New(a.KV, a.Notes, a.Notify, a.Bus, a.Tracer, a.Log)
	a.closers = append(a.closers, func() error { a.Sync.Close(); return nil })
	if cfg.Sync.Mode != "" {
		if err := a.Sync.SetMode(domain.SyncMode(cfg.Sync.Mode)); err != nil {
			return nil, err
		}
	}

	a.Connectivity = connectivity.New(connectivity.Config{
		ProbeAddr:     cfg.Remote.probeAddr(),
		ProbeInterval: parseDuration(cfg.Remote.ProbeInterval, 10*time.Second),
		ProbeTimeout:  parseDuration(cfg.Remote.ProbeTimeout, 3*time.Second),
	}, a.Bus, a.Log)

	a.Log.Info("inkwell ready",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("kv", cfg.Storage.Backend),
		zap.String("remote", cfg.Remote.Backend),
		zap.Int64("balance", a.Ledger.Balance()),
	)
	return a, nil
}

func (a *App) openKV() (domain.KVStore, error) {
	sc := a.Config.Storage
	switch sc.Backend {
	case "redis":
		rc := kvredis.DefaultConfig()
		rc.Addr = sc.RedisAddr
		rc.Password = sc.RedisPassword
		rc.DB = sc.RedisDB
		rc.Prefix = sc.RedisPrefix
		store, err := kvredis.Open(rc)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		return kvmemory.New(), nil
	default:
		return a.DB, nil
	}
}

func (a *App) openRemote() (domain.RemoteCollection, error) {
	rc := a.Config.Remote
	switch rc.Backend {
	case "surreal":
		sc := surreal.Config{
			URL:       rc.URL,
			Namespace: rc.Namespace,
			Database:  rc.Database,
			Username:  rc.Username,
			Password:  rc.Password,
		}
		lazy := surreal.NewLazy(sc)
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return lazy.Close(ctx)
		})
		return lazy, nil
	case "memory":
		return remotememory.New(), nil
	default:
		return nil, nil
	}
}

// Start launches the toast ticker, the daily-reward timer and the
// connectivity probe. It returns immediately.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true
	ctx, a.cancel = context.WithCancel(ctx)

	for _, run := range []func(context.Context){a.Notify.Run, a.Ledger.Run, a.Connectivity.Run} {
		a.wg.Add(1)
		go func(run func(context.Context)) {
			defer a.wg.Done()
			run(ctx)
		}(run)
	}
}

// Synchronize runs one sync bounded by the configured timeout. Outside a
// started daemon it probes connectivity first; when coming online starts an
// auto sync, that run's completion stands in for this one.
func (a *App) Synchronize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.syncTimeout)
	defer cancel()

	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		before := a.Sync.State().LastSyncedAt
		a.Connectivity.ProbeOnce(ctx)
		if err := a.Sync.WaitIdle(ctx); err != nil {
			return err
		}
		if after := a.Sync.State().LastSyncedAt; after != nil && (before == nil || after.After(*before)) {
			return nil
		}
	}
	return a.Sync.Synchronize(ctx)
}

// Close stops background loops and releases stores in reverse order.
func (a *App) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	return a.closeAll()
}

func (a *App) closeAll() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// NewLogger builds the configured logger.
func NewLogger(cfg Config) (*zap.Logger, io.Closer, error) {
	return logging.New(cfg.Log)
}
