package domain

import (
	"fmt"
	"time"
)

// ─── Connection & Sync Types ────────────────────────────────────────────────

// SyncMode controls whether reconnecting triggers reconciliation.
type SyncMode string

const (
	SyncManual SyncMode = "manual"
	SyncAuto   SyncMode = "auto"
)

// ParseSyncMode validates a sync mode name.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case SyncManual, SyncAuto:
		return SyncMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSyncMode, s)
}

// ConnectionState is the sync coordinator's observable state.
type ConnectionState struct {
	IsOnline           bool       `json:"is_online"`
	IsSyncing          bool       `json:"is_syncing"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	PendingChangeCount int        `json:"pending_change_count"`
	SyncMode           SyncMode   `json:"sync_mode"`
}

// Phase names the coordinator state machine position.
type Phase string

const (
	PhaseOffline       Phase = "offline"
	PhaseOnlineIdle    Phase = "online-idle"
	PhaseOnlineSyncing Phase = "online-syncing"
)

// Phase derives the state machine position from the flags.
func (s ConnectionState) Phase() Phase {
	switch {
	case !s.IsOnline:
		return PhaseOffline
	case s.IsSyncing:
		return PhaseOnlineSyncing
	default:
		return PhaseOnlineIdle
	}
}
