package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// ─── Note Operations ────────────────────────────────────────────────────────
// Timestamps are stored as unix nanoseconds so SQL comparisons are exact.

const noteColumns = `id, title, content, updated_at, deleted`

// UpsertNote writes a locally mutated note. Its sync mark is left untouched,
// so the note counts as unsynced until MarkNoteSynced.
func (db *DB) UpsertNote(n domain.Note) error {
	_, err := db.db.Exec(`
		INSERT INTO notes (id, title, content, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			updated_at = excluded.updated_at,
			deleted    = excluded.deleted
	`, n.ID, n.Title, n.Content, n.UpdatedAt.UnixNano(), boolToInt(n.Deleted))
	return err
}

// PutSyncedNote writes a note received from the remote store and marks it
// already synced at its own timestamp.
func (db *DB) PutSyncedNote(n domain.Note) error {
	ts := n.UpdatedAt.UnixNano()
	_, err := db.db.Exec(`
		INSERT INTO notes (id, title, content, updated_at, synced_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			updated_at = excluded.updated_at,
			synced_at  = excluded.synced_at,
			deleted    = excluded.deleted
	`, n.ID, n.Title, n.Content, ts, ts, boolToInt(n.Deleted))
	return err
}

// GetNote loads one note, including soft-deleted ones.
func (db *DB) GetNote(id string) (domain.Note, error) {
	row := db.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return n, err
}

// ListNotes returns notes newest first.
func (db *DB) ListNotes(includeDeleted bool) ([]domain.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes`
	if !includeDeleted {
		q += ` WHERE deleted = 0`
	}
	q += ` ORDER BY updated_at DESC, id`
	return db.queryNotes(q)
}

// ListUnsyncedNotes returns notes mutated since they were last synced.
func (db *DB) ListUnsyncedNotes() ([]domain.Note, error) {
	return db.queryNotes(`SELECT ` + noteColumns + ` FROM notes
		WHERE synced_at IS NULL OR updated_at > synced_at
		ORDER BY updated_at`)
}

// MarkNoteSynced records that the version of id stamped updatedAt reached the
// remote. A newer local edit made meanwhile stays unsynced.
func (db *DB) MarkNoteSynced(id string, updatedAt time.Time) error {
	ts := updatedAt.UnixNano()
	_, err := db.db.Exec(`UPDATE notes SET synced_at = ? WHERE id = ? AND updated_at = ?`, ts, id, ts)
	return err
}

// ListNoteIDsMutatedSince returns ids of notes with updated_at strictly after since.
func (db *DB) ListNoteIDsMutatedSince(since time.Time) ([]string, error) {
	rows, err := db.db.Query(`SELECT id FROM notes WHERE updated_at > ? ORDER BY updated_at`, since.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) queryNotes(q string, args ...any) ([]domain.Note, error) {
	rows, err := db.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (domain.Note, error) {
	var (
		n       domain.Note
		updated int64
		deleted int
	)
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &updated, &deleted); err != nil {
		return domain.Note{}, err
	}
	n.UpdatedAt = time.Unix(0, updated)
	n.Deleted = deleted == 1
	return n, nil
}
