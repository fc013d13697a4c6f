// Package notes is the local note store and its reconciliation with the
// remote collection.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/sqlite"
)

// ErrEmptyNote is returned when both title and content are blank.
var ErrEmptyNote = errors.New("note needs a title or content")

// Store persists notes in SQLite and mirrors them to a remote collection.
type Store struct {
	db     *sqlite.DB
	remote domain.RemoteCollection
	bus    *eventbus.Bus
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Store. remote may be nil for a purely local setup, in which
// case sync operations fail with domain.ErrRemoteDown.
func New(db *sqlite.DB, remote domain.RemoteCollection, bus *eventbus.Bus, log *zap.Logger) *Store {
	return &Store{
		db:     db,
		remote: remote,
		bus:    bus,
		log:    logging.OrNop(log).Named("notes"),
		now:    time.Now,
	}
}

func (s *Store) changed(id, op string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicNotesChanged, eventbus.NotesChanged{NoteID: id, Op: op})
	}
}

// ─── Local CRUD ─────────────────────────────────────────────────────────────

// Create stores a new note.
func (s *Store) Create(title, content string) (domain.Note, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(content) == "" {
		return domain.Note{}, ErrEmptyNote
	}
	n := domain.Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		UpdatedAt: s.now(),
	}
	if err := s.db.UpsertNote(n); err != nil {
		return domain.Note{}, fmt.Errorf("create note: %w", err)
	}
	s.log.Debug("note created", zap.String("id", n.ID))
	s.changed(n.ID, "create")
	return n, nil
}

// Update replaces title and content of a live note.
func (s *Store) Update(id, title, content string) (domain.Note, error) {
	n, err := s.Get(id)
	if err != nil {
		return domain.Note{}, err
	}
	n.Title = title
	n.Content = content
	n.UpdatedAt = s.stamp(n.UpdatedAt)
	if err := s.db.UpsertNote(n); err != nil {
		return domain.Note{}, fmt.Errorf("update note: %w", err)
	}
	s.changed(n.ID, "update")
	return n, nil
}

// Delete soft-deletes a note so the deletion itself can sync.
func (s *Store) Delete(id string) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	n.Deleted = true
	n.UpdatedAt = s.stamp(n.UpdatedAt)
	if err := s.db.UpsertNote(n); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	s.changed(n.ID, "delete")
	return nil
}

// Get returns a live note. Deleted notes report domain.ErrNotFound.
func (s *Store) Get(id string) (domain.Note, error) {
	n, err := s.db.GetNote(id)
	if err != nil {
		return domain.Note{}, err
	}
	if n.Deleted {
		return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return n, nil
}

// List returns live notes, newest first.
func (s *Store) List() ([]domain.Note, error) {
	return s.db.ListNotes(false)
}

// stamp returns now, nudged past prev so successive edits always order.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

// ─── Reconciliation ─────────────────────────────────────────────────────────

// SyncToRemote pushes every note changed since its last sync and marks the
// pushed versions synced.
func (s *Store) SyncToRemote(ctx context.Context) error {
	if s.remote == nil {
		return domain.ErrRemoteDown
	}
	pending, err := s.db.ListUnsyncedNotes()
	if err != nil {
		return fmt.Errorf("list unsynced: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if err := s.remote.Upsert(ctx, pending); err != nil {
		return fmt.Errorf("upsert remote: %w", err)
	}
	for _, n := range pending {
		if err := s.db.MarkNoteSynced(n.ID, n.UpdatedAt); err != nil {
			return fmt.Errorf("mark %s synced: %w", n.ID, err)
		}
	}
	s.log.Info("pushed notes", zap.Int("count", len(pending)))
	return nil
}

// LoadFromRemote pulls the remote collection. A remote note replaces the
// local one when the local copy is absent or not newer.
func (s *Store) LoadFromRemote(ctx context.Context) error {
	if s.remote == nil {
		return domain.ErrRemoteDown
	}
	remote, err := s.remote.List(ctx)
	if err != nil {
		return fmt.Errorf("list remote: %w", err)
	}

	applied := 0
	for _, r := range remote {
		local, err := s.db.GetNote(r.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return fmt.Errorf("read local %s: %w", r.ID, err)
		case r.UpdatedAt.Before(local.UpdatedAt):
			continue
		}
		if err := s.db.PutSyncedNote(r); err != nil {
			return fmt.Errorf("store remote %s: %w", r.ID, err)
		}
		applied++
	}
	s.log.Info("pulled notes", zap.Int("remote", len(remote)), zap.Int("applied", applied))
	return nil
}

// ListMutatedSince returns ids of notes changed strictly after since.
func (s *Store) ListMutatedSince(since time.Time) ([]string, error) {
	return s.db.ListNoteIDsMutatedSince(since)
}
