// Package syncer coordinates reconciliation between the local note store
// and the remote collection under intermittent connectivity.
//
// States: offline, online-idle, online-syncing. Going online in auto mode
// with pending changes starts a background sync. Going offline never cancels
// an in-flight sync; its outcome is discarded when it completes offline.
// Notes edited while online are pushed upstream at once instead of being
// counted as pending.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// KV keys owned by the coordinator.
const (
	KeyMode         = "sync.mode"
	KeyLastSyncedAt = "sync.last_synced_at"
	KeyPendingCount = "sync.pending_count"
)

// DefaultPushTimeout bounds one upstream push of online edits.
const DefaultPushTimeout = 30 * time.Second

// Coordinator owns the ConnectionState.
type Coordinator struct {
	mu       sync.Mutex
	state    domain.ConnectionState
	kv       domain.KVStore
	notes    domain.NoteSyncer
	notifier domain.Notifier
	bus      *eventbus.Bus
	tracer   *observability.Tracer
	log      *zap.Logger
	now      func() time.Time

	// idle is closed when the running sync finishes.
	idle chan struct{}

	pushing     bool
	pushAgain   bool
	pushTimeout time.Duration

	bg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	unsubs []func()
}

// New restores persisted mode, last sync time and pending count, starts
// offline, and subscribes to connectivity and note changes.
func New(kv domain.KVStore, notes domain.NoteSyncer, notifier domain.Notifier, bus *eventbus.Bus, tracer *observability.Tracer, log *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:    domain.ConnectionState{SyncMode: domain.SyncManual},
		kv:       kv,
		notes:    notes,
		notifier: notifier,
		bus:      bus,
		tracer:   tracer,
		log:      logging.OrNop(log).Named("sync"),
		now:      time.Now,

		pushTimeout: DefaultPushTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	c.load()
	observability.PendingChanges.Set(float64(c.state.PendingChangeCount))

	if bus != nil {
		c.unsubs = append(c.unsubs,
			bus.Subscribe(eventbus.TopicConnectivityChanged, c.handleConnectivity),
			bus.Subscribe(eventbus.TopicNotesChanged, c.handleNotesChanged),
		)
	}
	return c
}

func (c *Coordinator) load() {
	var mode string
	if c.getJSON(KeyMode, &mode) {
		if m, err := domain.ParseSyncMode(mode); err == nil {
			c.state.SyncMode = m
		} else {
			c.log.Warn("ignoring persisted sync mode", zap.Error(err))
		}
	}
	var last time.Time
	if c.getJSON(KeyLastSyncedAt, &last) && !last.IsZero() {
		c.state.LastSyncedAt = &last
	}
	var pending int
	if c.getJSON(KeyPendingCount, &pending) && pending > 0 {
		c.state.PendingChangeCount = pending
	}
}

func (c *Coordinator) getJSON(key string, v any) bool {
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.log.Warn("kv read", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.log.Warn("kv decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Coordinator) setJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("kv encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.Set(key, string(data)); err != nil {
		c.log.Warn("kv write", zap.String("key", key), zap.Error(err))
	}
}

func (c *Coordinator) notify(typ domain.NotificationType, action domain.Action, title, msg string) {
	if c.notifier != nil {
		c.notifier.Add(typ, action, title, msg)
	}
}

func (c *Coordinator) publishState(s domain.ConnectionState) {
	observability.PendingChanges.Set(float64(s.PendingChangeCount))
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicSyncState, s)
	}
}

// snapshotLocked copies the state so callers never share the LastSyncedAt pointer.
func (c *Coordinator) snapshotLocked() domain.ConnectionState {
	s := c.state
	if s.LastSyncedAt != nil {
		t := *s.LastSyncedAt
		s.LastSyncedAt = &t
	}
	return s
}

// State returns a snapshot.
func (c *Coordinator) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ─── Connectivity ───────────────────────────────────────────────────────────

// SetOnline records a connectivity transition. Repeating the current state
// is a no-op.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	if c.state.IsOnline == online {
		c.mu.Unlock()
		return
	}
	c.state.IsOnline = online
	auto := online && !c.closed && c.state.SyncMode == domain.SyncAuto && c.state.PendingChangeCount > 0 && !c.state.IsSyncing
	if auto {
		// The run is claimed before the lock drops.
		c.beginLocked()
		c.bg.Add(1)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info("connectivity", zap.Bool("online", online), zap.Int("pending", snap.PendingChangeCount))
	if online {
		c.notify(domain.NotifySuccess, domain.ActionConnectionOnline, "Back online", "Connection restored")
	} else {
		c.notify(domain.NotifyWarning, domain.ActionConnectionOffline, "You're offline", "Changes will be kept locally until the connection returns")
	}
	c.publishState(snap)

	if auto {
		go func() {
			defer c.bg.Done()
			if err := c.run(c.ctx, snap.SyncMode); err != nil {
				c.log.Warn("auto sync", zap.Error(err))
			}
		}()
	}
}

func (c *Coordinator) handleConnectivity(e eventbus.Event) {
	if p, ok := e.Payload.(eventbus.ConnectivityChanged); ok {
		c.SetOnline(p.Online)
	}
}

// ─── Pending Changes ────────────────────────────────────────────────────────

// RecomputePending sets the pending count to the number of notes mutated
// after the last successful sync. It does nothing before the first sync.
func (c *Coordinator) RecomputePending() error {
	c.mu.Lock()
	if c.state.LastSyncedAt == nil {
		c.mu.Unlock()
		return nil
	}
	since := *c.state.LastSyncedAt
	c.mu.Unlock()

	ids, err := c.notes.ListMutatedSince(since)
	if err != nil {
		return fmt.Errorf("list mutated notes: %w", err)
	}

	c.mu.Lock()
	c.state.PendingChangeCount = len(ids)
	c.setJSON(KeyPendingCount, c.state.PendingChangeCount)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(snap)
	return nil
}

func (c *Coordinator) handleNotesChanged(eventbus.Event) {
	c.mu.Lock()
	online := c.state.IsOnline
	c.mu.Unlock()
	if online {
		c.schedulePush()
		return
	}
	if err := c.RecomputePending(); err != nil {
		c.log.Warn("recompute pending", zap.Error(err))
	}
}

// ─── Upstream Push ──────────────────────────────────────────────────────────

// schedulePush sends local edits upstream on a tracked goroutine. Edits that
// arrive while a push or a sync is running are picked up by one more push
// once it finishes.
func (c *Coordinator) schedulePush() {
	c.mu.Lock()
	if c.closed || !c.state.IsOnline {
		c.mu.Unlock()
		return
	}
	if c.pushing || c.state.IsSyncing {
		c.pushAgain = true
		c.mu.Unlock()
		return
	}
	c.pushing = true
	c.pushAgain = false
	c.bg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.bg.Done()
		for {
			c.push()

			c.mu.Lock()
			again := c.pushAgain && c.state.IsOnline && !c.state.IsSyncing && !c.closed
			c.pushAgain = false
			if !again {
				c.pushing = false
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}()
}

// push runs one SyncToRemote. On failure the unpushed edits are counted as
// pending so the next reconnect in auto mode, or a manual sync, sends them.
func (c *Coordinator) push() {
	ctx, cancel := context.WithTimeout(c.ctx, c.pushTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "push", map[string]string{"trigger": "edit"})
	err := c.notes.SyncToRemote(ctx)
	c.tracer.End(span, err)
	if err == nil {
		observability.SyncRuns.WithLabelValues("pushed").Inc()
		c.log.Debug("online edits pushed")
		return
	}

	observability.SyncRuns.WithLabelValues("push_error").Inc()
	c.log.Warn("push online edits", zap.Error(err))

	c.mu.Lock()
	var since time.Time
	if c.state.LastSyncedAt != nil {
		since = *c.state.LastSyncedAt
	}
	c.mu.Unlock()

	ids, lerr := c.notes.ListMutatedSince(since)
	if lerr != nil {
		c.log.Warn("list mutated notes", zap.Error(lerr))
		return
	}
	c.mu.Lock()
	c.state.PendingChangeCount = len(ids)
	c.setJSON(KeyPendingCount, c.state.PendingChangeCount)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publishState(snap)
}

// ─── Synchronize ────────────────────────────────────────────────────────────

// Synchronize pushes local changes then pulls remote ones. It fails with
// domain.ErrOffline when offline and domain.ErrSyncInProgress when another
// sync is running. A failed sync leaves state unchanged and is not retried.
func (c *Coordinator) Synchronize(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.IsOnline {
		c.mu.Unlock()
		observability.SyncRuns.WithLabelValues("offline").Inc()
		c.notify(domain.NotifyError, domain.ActionSyncOffline, "Sync unavailable", "No internet connection available")
		return domain.ErrOffline
	}
	if c.state.IsSyncing {
		c.mu.Unlock()
		observability.SyncRuns.WithLabelValues("busy").Inc()
		c.notify(domain.NotifyInfo, domain.ActionSyncBusy, "Sync in progress", "A sync is already running")
		return domain.ErrSyncInProgress
	}
	c.beginLocked()
	mode := c.state.SyncMode
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publishState(snap)

	return c.run(ctx, mode)
}

// WaitIdle blocks until no sync is running or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		idle := c.idle
		syncing := c.state.IsSyncing
		c.mu.Unlock()
		if !syncing || idle == nil {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) beginLocked() {
	c.state.IsSyncing = true
	c.idle = make(chan struct{})
}

// endLocked clears the syncing flag and reports whether edits made during
// the run still need a push.
func (c *Coordinator) endLocked() bool {
	c.state.IsSyncing = false
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
	again := c.pushAgain && c.state.IsOnline
	c.pushAgain = false
	return again
}

// run performs a sync claimed by beginLocked.
func (c *Coordinator) run(ctx context.Context, mode domain.SyncMode) error {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "sync", map[string]string{"mode": string(mode)})
	err := c.reconcile(ctx)
	observability.SyncDuration.Observe(c.now().Sub(start).Seconds())

	c.mu.Lock()
	pushAgain := c.endLocked()
	if !c.state.IsOnline {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.tracer.Discard(span)
		observability.SyncRuns.WithLabelValues("discarded").Inc()
		c.log.Info("sync finished offline, result discarded", zap.NamedError("outcome", err))
		c.publishState(snap)
		return domain.ErrOffline
	}
	if err == nil {
		now := c.now()
		c.state.LastSyncedAt = &now
		c.state.PendingChangeCount = 0
		c.setJSON(KeyLastSyncedAt, now)
		c.setJSON(KeyPendingCount, 0)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.tracer.End(span, err)
	c.publishState(snap)
	if pushAgain {
		c.schedulePush()
	}

	if err != nil {
		observability.SyncRuns.WithLabelValues("error").Inc()
		c.log.Error("sync failed", zap.Error(err))
		c.notify(domain.NotifyError, domain.ActionSyncError, "Sync failed", syncErrorMessage(err))
		return fmt.Errorf("sync: %w", err)
	}

	observability.SyncRuns.WithLabelValues("success").Inc()
	c.log.Info("sync complete")
	c.notify(domain.NotifySuccess, domain.ActionSyncSuccess, "Synced", "All changes saved to the cloud")
	return nil
}

func (c *Coordinator) reconcile(ctx context.Context) error {
	pctx, push := c.tracer.Start(ctx, "push", nil)
	err := c.notes.SyncToRemote(pctx)
	c.tracer.End(push, err)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	lctx, pull := c.tracer.Start(ctx, "pull", nil)
	err = c.notes.LoadFromRemote(lctx)
	c.tracer.End(pull, err)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

func syncErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRemoteDown):
		return "The cloud store could not be reached"
	case errors.Is(err, context.DeadlineExceeded):
		return "The sync timed out"
	default:
		return err.Error()
	}
}

// ─── Mode ───────────────────────────────────────────────────────────────────

// SetMode persists the sync mode. It has no other effect.
func (c *Coordinator) SetMode(mode domain.SyncMode) error {
	if _, err := domain.ParseSyncMode(string(mode)); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.SyncMode = mode
	c.setJSON(KeyMode, string(mode))
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info("sync mode", zap.String("mode", string(mode)))
	c.publishState(snap)
	return nil
}

// Close detaches from the bus and waits for background syncs to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	c.bg.Wait()
	c.cancel()
}

// String renders the state for logs and the CLI.
func (c *Coordinator) String() string {
	s := c.State()
	last := "never"
	if s.LastSyncedAt != nil {
		last = s.LastSyncedAt.Format(time.RFC3339)
	}
	return string(s.Phase()) + " mode=" + string(s.SyncMode) +
		" pending=" + strconv.Itoa(s.PendingChangeCount) + " last=" + last
}
