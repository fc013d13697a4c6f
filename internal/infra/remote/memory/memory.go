// Package memory is an in-process domain.RemoteCollection. It can be switched
// into a failing mode to stand in for a lost connection.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// Collection stores notes by id.
type Collection struct {
	mu      sync.Mutex
	notes   map[string]domain.Note
	down    bool
	upserts int
}

// New creates an empty, reachable collection.
func New() *Collection {
	return &Collection{notes: make(map[string]domain.Note)}
}

// SetDown toggles the failure mode.
func (c *Collection) SetDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = down
}

// List returns every remote note ordered by id.
func (c *Collection) List(ctx context.Context) ([]domain.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Note, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert replaces the remote copy of each note.
func (c *Collection) Upsert(ctx context.Context, notes []domain.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return err
	}
	for _, n := range notes {
		c.notes[n.ID] = n
	}
	c.upserts += len(notes)
	return nil
}

// Put seeds a note directly, bypassing the failure mode.
func (c *Collection) Put(n domain.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[n.ID] = n
}

// Get returns the remote copy of id.
func (c *Collection) Get(id string) (domain.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notes[id]
	return n, ok
}

// UpsertCount returns the total number of notes written through Upsert.
func (c *Collection) UpsertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts
}

func (c *Collection) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.down {
		return domain.ErrRemoteDown
	}
	return nil
}
