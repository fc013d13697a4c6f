package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// ─── Milestone Operations ───────────────────────────────────────────────────

// DefineMilestone inserts or updates a milestone definition. An existing
// unlock is preserved.
func (db *DB) DefineMilestone(m domain.Milestone) error {
	_, err := db.db.Exec(`
		INSERT INTO milestones (id, title, points) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title  = excluded.title,
			points = excluded.points
	`, m.ID, m.Title, m.Points)
	return err
}

// UnlockMilestone stamps the milestone unlocked at at. It reports false when
// the milestone was already unlocked.
func (db *DB) UnlockMilestone(id string, at time.Time) (bool, error) {
	res, err := db.db.Exec(`UPDATE milestones SET unlocked_at = ? WHERE id = ? AND unlocked_at IS NULL`, at.UnixNano(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := db.GetMilestone(id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// GetMilestone loads one milestone.
func (db *DB) GetMilestone(id string) (domain.Milestone, error) {
	row := db.db.QueryRow(`SELECT id, title, points, unlocked_at FROM milestones WHERE id = ?`, id)
	m, err := scanMilestone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Milestone{}, fmt.Errorf("milestone %s: %w", id, domain.ErrNotFound)
	}
	return m, err
}

// ListMilestones returns all milestones ordered by points then id.
func (db *DB) ListMilestones() ([]domain.Milestone, error) {
	rows, err := db.db.Query(`SELECT id, title, points, unlocked_at FROM milestones ORDER BY points, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SumUnlockedMilestonePoints totals the points of unlocked milestones.
func (db *DB) SumUnlockedMilestonePoints() (int64, error) {
	var total int64
	err := db.db.QueryRow(`SELECT COALESCE(SUM(points), 0) FROM milestones WHERE unlocked_at IS NOT NULL`).Scan(&total)
	return total, err
}

func scanMilestone(s scanner) (domain.Milestone, error) {
	var (
		m        domain.Milestone
		unlocked sql.NullInt64
	)
	if err := s.Scan(&m.ID, &m.Title, &m.Points, &unlocked); err != nil {
		return domain.Milestone{}, err
	}
	if unlocked.Valid {
		t := time.Unix(0, unlocked.Int64)
		m.UnlockedAt = &t
	}
	return m, nil
}
