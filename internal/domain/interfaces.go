package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// KVStore is durable local storage surviving process restarts.
// Get reports ok=false for a missing key without an error.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// RemoteCollection is a network-reachable note collection.
// Every call fails when connectivity is absent.
type RemoteCollection interface {
	List(ctx context.Context) ([]Note, error)
	Upsert(ctx context.Context, notes []Note) error
}

// NoteSyncer is the note store's reconciliation capability.
type NoteSyncer interface {
	SyncToRemote(ctx context.Context) error
	LoadFromRemote(ctx context.Context) error
	ListMutatedSince(since time.Time) ([]string, error)
}

// RewardsSource supplies the baseline point total used to seed a fresh ledger.
type RewardsSource interface {
	BaselinePoints() (int64, error)
}

// Notifier surfaces a message through the notification center.
type Notifier interface {
	Add(typ NotificationType, action Action, title, message string) (NotificationRecord, bool)
}
