// Package surreal is the SurrealDB-backed remote note collection.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// Table holds one record per note, keyed by note id.
const Table = "notes"

// Config locates the SurrealDB instance.
type Config struct {
	URL       string `toml:"url"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// DefaultConfig returns a local development instance.
func DefaultConfig() Config {
	return Config{
		URL:       "ws://127.0.0.1:8000/rpc",
		Namespace: "inkwell",
		Database:  "notes",
	}
}

// Collection implements domain.RemoteCollection.
type Collection struct {
	db *surrealdb.DB
}

// Open connects over WebSocket with the surrealcbor codec, signs in when
// credentials are set, and selects the namespace and database.
func Open(ctx context.Context, cfg Config) (*Collection, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse surreal url: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("connect surreal: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("surreal sign in: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("surreal use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return &Collection{db: db}, nil
}

// Close ends the session.
func (c *Collection) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

// record is the stored document shape.
type record struct {
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

func toRecord(n domain.Note) record {
	return record{
		NoteID:    n.ID,
		Title:     n.Title,
		Content:   n.Content,
		UpdatedAt: n.UpdatedAt.UTC(),
		Deleted:   n.Deleted,
	}
}

func (r record) note() domain.Note {
	return domain.Note{
		ID:        r.NoteID,
		Title:     r.Title,
		Content:   r.Content,
		UpdatedAt: r.UpdatedAt,
		Deleted:   r.Deleted,
	}
}

// RecordID addresses the document for a note.
func RecordID(noteID string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: Table, ID: noteID}
}

// List returns every remote note.
func (c *Collection) List(ctx context.Context) ([]domain.Note, error) {
	q := "SELECT note_id, title, content, updated_at, deleted FROM " + Table
	res, err := surrealdb.Query[[]record](ctx, c.db, q, nil)
	if err != nil {
		return nil, fmt.Errorf("list remote notes: %w", err)
	}

	var notes []domain.Note
	if res != nil && len(*res) > 0 {
		for _, r := range (*res)[0].Result {
			notes = append(notes, r.note())
		}
	}
	return notes, nil
}

// Upsert writes each note over its remote record.
func (c *Collection) Upsert(ctx context.Context, notes []domain.Note) error {
	for _, n := range notes {
		params := map[string]any{
			"rid":  RecordID(n.ID),
			"note": toRecord(n),
		}
		if _, err := surrealdb.Query[any](ctx, c.db, "UPSERT $rid CONTENT $note", params); err != nil {
			return fmt.Errorf("upsert remote note %s: %w", n.ID, err)
		}
	}
	return nil
}

// ─── Lazy Connection ────────────────────────────────────────────────────────

// Lazy connects on first use and reconnects after a failed call, so a
// process can start while the server is unreachable.
type Lazy struct {
	cfg  Config
	mu   sync.Mutex
	conn *Collection
}

// NewLazy returns a collection that dials cfg on demand.
func NewLazy(cfg Config) *Lazy {
	return &Lazy{cfg: cfg}
}

func (l *Lazy) get(ctx context.Context) (*Collection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn, nil
	}
	c, err := Open(ctx, l.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteDown, err)
	}
	l.conn = c
	return c, nil
}

func (l *Lazy) drop(ctx context.Context, c *Collection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == c {
		_ = c.Close(ctx)
		l.conn = nil
	}
}

// List implements domain.RemoteCollection.
func (l *Lazy) List(ctx context.Context) ([]domain.Note, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := c.List(ctx)
	if err != nil {
		l.drop(ctx, c)
	}
	return notes, err
}

// Upsert implements domain.RemoteCollection.
func (l *Lazy) Upsert(ctx context.Context, notes []domain.Note) error {
	c, err := l.get(ctx)
	if err != nil {
		return err
	}
	if err := c.Upsert(ctx, notes); err != nil {
		l.drop(ctx, c)
		return err
	}
	return nil
}

// Close ends any open session.
func (l *Lazy) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close(ctx)
	l.conn = nil
	return err
}
