// Package notify is the notification center: a deduplicated, persisted list
// of notification records plus a transient queue of toasts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// KeyList is the KV key holding the persisted record list.
const KeyList = "notifications.list"

// Config tunes dedup, toast lifetime and retention.
type Config struct {
	DedupWindow  time.Duration `toml:"-"`
	ToastTTL     time.Duration `toml:"-"`
	TickInterval time.Duration `toml:"-"`
	MaxRecords   int           `toml:"max_records"`
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		DedupWindow:  5 * time.Second,
		ToastTTL:     5 * time.Second,
		TickInterval: 1 * time.Second,
		MaxRecords:   100,
	}
}

// Center owns notification records and toasts.
type Center struct {
	mu      sync.Mutex
	cfg     Config
	kv      domain.KVStore
	bus     *eventbus.Bus
	log     *zap.Logger
	now     func() time.Time
	records []domain.NotificationRecord // newest first
	toasts  []domain.Toast              // oldest first
	unsub   func()
}

// New loads persisted records and subscribes to notify.intent.
func New(cfg Config, kv domain.KVStore, bus *eventbus.Bus, log *zap.Logger) *Center {
	def := DefaultConfig()
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	if cfg.ToastTTL <= 0 {
		cfg.ToastTTL = def.ToastTTL
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = def.MaxRecords
	}

	c := &Center{
		cfg: cfg,
		kv:  kv,
		bus: bus,
		log: logging.OrNop(log).Named("notify"),
		now: time.Now,
	}
	c.load()
	if bus != nil {
		c.unsub = bus.Subscribe(eventbus.TopicNotifyIntent, c.handleIntent)
	}
	return c
}

// Close detaches from the bus.
func (c *Center) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

func (c *Center) load() {
	raw, ok, err := c.kv.Get(KeyList)
	if err != nil {
		c.log.Warn("load notifications", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var records []domain.NotificationRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		c.log.Warn("discarding unreadable notifications", zap.Error(err))
		return
	}
	if len(records) > c.cfg.MaxRecords {
		records = records[:c.cfg.MaxRecords]
	}
	c.records = records
}

// persistLocked writes the record list. Failures are logged only.
func (c *Center) persistLocked() {
	data, err := json.Marshal(c.records)
	if err != nil {
		c.log.Error("encode notifications", zap.Error(err))
		return
	}
	if err := c.kv.Set(KeyList, string(data)); err != nil {
		c.log.Warn("persist notifications", zap.Error(err))
	}
}

// ─── Add ────────────────────────────────────────────────────────────────────

// Add stores a notification and shows it as a toast. It returns false, and
// changes nothing, when an identical notification was added within the
// dedup window.
func (c *Center) Add(typ domain.NotificationType, action domain.Action, title, message string) (domain.NotificationRecord, bool) {
	if !typ.Valid() {
		typ = domain.NotifyInfo
	}
	now := c.now()
	rec := domain.NotificationRecord{
		ID:        uuid.NewString(),
		Type:      typ,
		Action:    action,
		Title:     title,
		Message:   message,
		Timestamp: now,
	}

	c.mu.Lock()
	if c.isDuplicateLocked(rec, now) {
		c.mu.Unlock()
		observability.NotificationsDeduplicated.Inc()
		c.log.Debug("duplicate notification dropped", zap.String("action", string(action)), zap.String("title", title))
		return domain.NotificationRecord{}, false
	}

	c.records = append([]domain.NotificationRecord{rec}, c.records...)
	if len(c.records) > c.cfg.MaxRecords {
		c.records = c.records[:c.cfg.MaxRecords]
	}
	c.persistLocked()
	c.toasts = append(c.toasts, domain.Toast{Notification: rec, ShownAt: now})
	toasts := len(c.toasts)
	c.mu.Unlock()

	observability.NotificationsAdded.WithLabelValues(string(typ)).Inc()
	observability.ActiveToasts.Set(float64(toasts))
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicNotificationAdded, rec)
	}
	return rec, true
}

// isDuplicateLocked scans records newer than the dedup window.
func (c *Center) isDuplicateLocked(rec domain.NotificationRecord, now time.Time) bool {
	for _, r := range c.records {
		if now.Sub(r.Timestamp) >= c.cfg.DedupWindow {
			break
		}
		if r.SameContent(rec) {
			return true
		}
	}
	return false
}

func (c *Center) handleIntent(e eventbus.Event) {
	in, ok := e.Payload.(eventbus.Intent)
	if !ok {
		c.log.Warn("ignoring malformed notify intent", zap.String("payload", fmt.Sprintf("%T", e.Payload)))
		return
	}
	action := domain.Action(in.Action)
	if action == "" {
		action = domain.ActionSystem
	}
	c.Add(domain.NotificationType(in.Type), action, in.Title, in.Message)
}

// ─── Record Operations ──────────────────────────────────────────────────────

// MarkAsRead flags one record as read.
func (c *Center) MarkAsRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records[i].Read = true
			c.persistLocked()
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
}

// MarkAllAsRead flags every record as read.
func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		c.records[i].Read = true
	}
	c.persistLocked()
}

// Delete removes one record. Its toast, if visible, stays until it expires.
func (c *Center) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			c.persistLocked()
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
}

// ClearAll removes every record.
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = []domain.NotificationRecord{}
	c.persistLocked()
}

// List returns a copy of the records, newest first.
func (c *Center) List() []domain.NotificationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.NotificationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// UnreadCount counts records not yet read.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// ─── Toasts ─────────────────────────────────────────────────────────────────

// Toasts returns toasts still within their lifetime, oldest first.
func (c *Center) Toasts() []domain.Toast {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Toast, 0, len(c.toasts))
	for _, t := range c.toasts {
		if !t.ExpiredAt(now, c.cfg.ToastTTL) {
			out = append(out, t)
		}
	}
	return out
}

// Dismiss removes a toast early. It reports whether the toast was visible.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.toasts {
		if t.Notification.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			observability.ActiveToasts.Set(float64(len(c.toasts)))
			return true
		}
	}
	return false
}

// EvictExpired drops toasts older than the toast lifetime and returns how many went.
func (c *Center) EvictExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if !t.ExpiredAt(now, c.cfg.ToastTTL) {
			kept = append(kept, t)
		}
	}
	evicted := len(c.toasts) - len(kept)
	c.toasts = kept
	observability.ActiveToasts.Set(float64(len(c.toasts)))
	return evicted
}

// Run evicts expired toasts every tick until ctx is cancelled.
func (c *Center) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.EvictExpired()
		}
	}
}
