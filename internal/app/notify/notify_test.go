package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	kvmemory "github.com/inkwell-notes/inkwell/internal/infra/kv/memory"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCenter(t *testing.T) (*Center, *kvmemory.Store, *eventbus.Bus, *fakeClock) {
	t.Helper()
	kv := kvmemory.New()
	bus := eventbus.New()
	clock := &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(DefaultConfig(), kv, bus, nil)
	c.now = clock.now
	t.Cleanup(c.Close)
	return c, kv, bus, clock
}

var _ domain.Notifier = (*Center)(nil)

// ─── Add & Dedup ────────────────────────────────────────────────────────────

func TestAdd_PrependsAndPersists(t *testing.T) {
	c, kv, _, clock := newTestCenter(t)

	first, ok := c.Add(domain.NotifyInfo, domain.ActionSystem, "One", "first")
	require.True(t, ok)
	clock.advance(time.Second)
	second, ok := c.Add(domain.NotifyInfo, domain.ActionSystem, "Two", "second")
	require.True(t, ok)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	raw, found, err := kv.Get(KeyList)
	require.NoError(t, err)
	require.True(t, found)
	var stored []domain.NotificationRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored, 2)
	assert.Equal(t, second.ID, stored[0].ID)
}

func TestAdd_DedupWithinWindow(t *testing.T) {
	c, _, _, clock := newTestCenter(t)

	_, ok := c.Add(domain.NotifySuccess, domain.ActionSyncSuccess, "Synced", "All changes saved")
	require.True(t, ok)

	clock.advance(2 * time.Second)
	_, ok = c.Add(domain.NotifySuccess, domain.ActionSyncSuccess, "Synced", "All changes saved")
	assert.False(t, ok, "identical add within 5s must be dropped")
	assert.Len(t, c.List(), 1)
	assert.Len(t, c.Toasts(), 1)
}

func TestAdd_DedupWindowElapsed(t *testing.T) {
	c, _, _, clock := newTestCenter(t)

	c.Add(domain.NotifySuccess, domain.ActionSyncSuccess, "Synced", "All changes saved")
	clock.advance(6 * time.Second)
	_, ok := c.Add(domain.NotifySuccess, domain.ActionSyncSuccess, "Synced", "All changes saved")
	assert.True(t, ok)
	assert.Len(t, c.List(), 2)
}

func TestAdd_DifferentContentNotDeduped(t *testing.T) {
	c, _, _, _ := newTestCenter(t)

	c.Add(domain.NotifyInfo, domain.ActionSystem, "Title", "a")
	_, ok := c.Add(domain.NotifyInfo, domain.ActionSystem, "Title", "b")
	assert.True(t, ok)
	_, ok = c.Add(domain.NotifyWarning, domain.ActionSystem, "Title", "a")
	assert.True(t, ok)
	assert.Len(t, c.List(), 3)
}

func TestAdd_PublishesNotificationAdded(t *testing.T) {
	c, _, bus, _ := newTestCenter(t)
	var got []domain.NotificationRecord
	bus.Subscribe(eventbus.TopicNotificationAdded, func(e eventbus.Event) {
		got = append(got, e.Payload.(domain.NotificationRecord))
	})

	rec, _ := c.Add(domain.NotifyError, domain.ActionSyncError, "Sync failed", "boom")
	c.Add(domain.NotifyError, domain.ActionSyncError, "Sync failed", "boom")

	require.Len(t, got, 1, "deduplicated add must not publish")
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestAdd_InvalidTypeBecomesInfo(t *testing.T) {
	c, _, _, _ := newTestCenter(t)
	rec, ok := c.Add("fatal", domain.ActionSystem, "x", "y")
	require.True(t, ok)
	assert.Equal(t, domain.NotifyInfo, rec.Type)
}

func TestAdd_Retention(t *testing.T) {
	kv := kvmemory.New()
	c := New(Config{MaxRecords: 3}, kv, nil, nil)
	for i := 0; i < 5; i++ {
		c.Add(domain.NotifyInfo, domain.ActionSystem, "n", string(rune('a'+i)))
	}
	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "e", list[0].Message)
}

func TestAdd_PersistFailureStillUpdatesMemory(t *testing.T) {
	c, kv, _, _ := newTestCenter(t)
	kv.FailWrites = errors.New("disk full")

	_, ok := c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")
	assert.True(t, ok)
	assert.Len(t, c.List(), 1)
	assert.Len(t, c.Toasts(), 1)
}

// ─── Record Operations ──────────────────────────────────────────────────────

func TestMarkAsRead(t *testing.T) {
	c, _, _, _ := newTestCenter(t)
	rec, _ := c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "other")
	require.Equal(t, 2, c.UnreadCount())

	require.NoError(t, c.MarkAsRead(rec.ID))
	assert.Equal(t, 1, c.UnreadCount())

	err := c.MarkAsRead("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	c, _, _, _ := newTestCenter(t)
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "1")
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "2")

	c.MarkAllAsRead()
	assert.Equal(t, 0, c.UnreadCount())
	for _, r := range c.List() {
		assert.True(t, r.Read)
	}
}

func TestDelete_LeavesToast(t *testing.T) {
	c, _, _, _ := newTestCenter(t)
	rec, _ := c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")

	require.NoError(t, c.Delete(rec.ID))
	assert.Empty(t, c.List())
	assert.Len(t, c.Toasts(), 1, "deleting a record does not touch the toast queue")
	assert.ErrorIs(t, c.Delete(rec.ID), domain.ErrNotFound)
}

func TestClearAll(t *testing.T) {
	c, kv, _, _ := newTestCenter(t)
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "1")
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "2")

	c.ClearAll()
	assert.Empty(t, c.List())

	raw, _, _ := kv.Get(KeyList)
	assert.Equal(t, "[]", raw)
}

func TestNew_LoadsPersisted(t *testing.T) {
	kv := kvmemory.New()
	c1 := New(DefaultConfig(), kv, nil, nil)
	rec, _ := c1.Add(domain.NotifyWarning, domain.ActionPointsInsufficient, "Not enough points", "need 10")

	c2 := New(DefaultConfig(), kv, nil, nil)
	list := c2.List()
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
	assert.Empty(t, c2.Toasts(), "toasts are not persisted")
}

func TestNew_CorruptListStartsEmpty(t *testing.T) {
	kv := kvmemory.New()
	kv.Set(KeyList, "{not json")
	c := New(DefaultConfig(), kv, nil, nil)
	assert.Empty(t, c.List())
}

// ─── Toasts ─────────────────────────────────────────────────────────────────

func TestToasts_ExpireAfterTTL(t *testing.T) {
	c, _, _, clock := newTestCenter(t)
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")

	clock.advance(4 * time.Second)
	assert.Len(t, c.Toasts(), 1)

	clock.advance(2 * time.Second)
	assert.Empty(t, c.Toasts())
	assert.Equal(t, 1, c.EvictExpired())
	assert.Len(t, c.List(), 1, "eviction leaves the record list alone")
}

func TestDismiss(t *testing.T) {
	c, _, _, _ := newTestCenter(t)
	rec, _ := c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")

	assert.True(t, c.Dismiss(rec.ID))
	assert.False(t, c.Dismiss(rec.ID))
	assert.Empty(t, c.Toasts())
}

func TestRun_EvictsOnTick(t *testing.T) {
	kv := kvmemory.New()
	c := New(Config{TickInterval: 5 * time.Millisecond, ToastTTL: time.Millisecond}, kv, nil, nil)
	c.Add(domain.NotifyInfo, domain.ActionSystem, "t", "m")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.toasts) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

// ─── Bus Intent ─────────────────────────────────────────────────────────────

func TestIntent_AddsNotification(t *testing.T) {
	c, _, bus, _ := newTestCenter(t)

	bus.Publish(eventbus.TopicNotifyIntent, eventbus.Intent{
		Type:    "success",
		Action:  string(domain.ActionMilestoneUnlocked),
		Title:   "Milestone unlocked",
		Message: "First note",
	})

	list := c.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotifySuccess, list[0].Type)
	assert.Equal(t, domain.ActionMilestoneUnlocked, list[0].Action)
}

func TestIntent_DefaultsAction(t *testing.T) {
	c, _, bus, _ := newTestCenter(t)
	bus.Publish(eventbus.TopicNotifyIntent, eventbus.Intent{Type: "info", Title: "Hi"})
	require.Len(t, c.List(), 1)
	assert.Equal(t, domain.ActionSystem, c.List()[0].Action)
}

func TestIntent_IgnoresMalformed(t *testing.T) {
	c, _, bus, _ := newTestCenter(t)
	bus.Publish(eventbus.TopicNotifyIntent, "not an intent")
	assert.Empty(t, c.List())
}

func TestClose_Unsubscribes(t *testing.T) {
	c, _, bus, _ := newTestCenter(t)
	c.Close()
	bus.Publish(eventbus.TopicNotifyIntent, eventbus.Intent{Type: "info", Title: "Hi"})
	assert.Empty(t, c.List())
}
