// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture; it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Points Types ───────────────────────────────────────────────────────────

// TransactionKind is the side of a ledger movement.
type TransactionKind string

const (
	KindEarned TransactionKind = "earned"
	KindSpent  TransactionKind = "spent"
)

// Category is the business reason for a points movement.
type Category string

const (
	CategoryDaily       Category = "daily"
	CategoryAchievement Category = "achievement"
	CategoryEdit        Category = "edit"
	CategoryAI          Category = "ai"
	CategoryTheme       Category = "theme"
	CategoryBook        Category = "book"
	CategoryPage        Category = "page"
	CategoryMemory      Category = "memory"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryDaily, CategoryAchievement, CategoryEdit, CategoryAI,
		CategoryTheme, CategoryBook, CategoryPage, CategoryMemory,
	}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Transaction is a single immutable entry in the points history.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      int64           `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Category    Category        `json:"category"`
}

// HistoryLimit is the number of transactions retained, most recent first.
const HistoryLimit = 10

// ─── Calendar Helpers ───────────────────────────────────────────────────────
// Daily rewards and streaks are keyed on the local calendar, not UTC.

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// IsYesterday reports whether prev falls exactly one calendar day before now in loc.
func IsYesterday(prev, now time.Time, loc *time.Location) bool {
	y, m, d := now.In(loc).Date()
	yesterday := time.Date(y, m, d-1, 12, 0, 0, 0, loc)
	return SameDay(prev, yesterday, loc)
}

// NextMidnight returns the start of the calendar day after now in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// ─── Note Types ─────────────────────────────────────────────────────────────

// Note is the unit of reconciliation between the local and remote stores.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// ─── Milestone Types ────────────────────────────────────────────────────────

// Milestone is an achievement that contributes to the baseline point total once unlocked.
type Milestone struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Points     int64      `json:"points"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Unlocked reports whether the milestone has been reached.
func (m Milestone) Unlocked() bool { return m.UnlockedAt != nil }
