package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

var _ domain.RemoteCollection = (*Collection)(nil)

func TestCollection_UpsertList(t *testing.T) {
	c := New()
	ctx := context.Background()
	now := time.Now()

	err := c.Upsert(ctx, []domain.Note{
		{ID: "b", Title: "second", UpdatedAt: now},
		{ID: "a", Title: "first", UpdatedAt: now},
	})
	if err != nil {
		t.Fatal(err)
	}

	notes, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0].ID != "a" || notes[1].ID != "b" {
		t.Errorf("List() = %+v", notes)
	}
	if c.UpsertCount() != 2 {
		t.Errorf("UpsertCount() = %d, want 2", c.UpsertCount())
	}
}

func TestCollection_Down(t *testing.T) {
	c := New()
	c.Put(domain.Note{ID: "seed"})
	c.SetDown(true)

	if _, err := c.List(context.Background()); !errors.Is(err, domain.ErrRemoteDown) {
		t.Errorf("List() err = %v, want ErrRemoteDown", err)
	}
	if err := c.Upsert(context.Background(), []domain.Note{{ID: "x"}}); !errors.Is(err, domain.ErrRemoteDown) {
		t.Errorf("Upsert() err = %v, want ErrRemoteDown", err)
	}
	if _, ok := c.Get("x"); ok {
		t.Error("failed upsert must not store")
	}

	c.SetDown(false)
	if notes, err := c.List(context.Background()); err != nil || len(notes) != 1 {
		t.Errorf("after recovery List() = %v, %v", notes, err)
	}
}

func TestCollection_CancelledContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
