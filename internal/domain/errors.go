package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Points errors
	ErrInvalidAmount      = errors.New("amount must be a positive integer")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidCategory    = errors.New("invalid points category")
	ErrReservedCategory   = errors.New("daily points are granted only by the daily reward")

	// Sync errors
	ErrOffline         = errors.New("no internet connection available")
	ErrSyncInProgress  = errors.New("a sync is already in progress")
	ErrInvalidSyncMode = errors.New("invalid sync mode")
	ErrRemoteDown      = errors.New("remote store is unreachable")

	// Storage errors
	ErrNotFound = errors.New("not found")
)
