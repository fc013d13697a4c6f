package memory

import (
	"errors"
	"testing"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

var _ domain.KVStore = (*Store)(nil)

func TestStore_RoundTrip(t *testing.T) {
	s := New()
	if err := s.Set("points.balance", "42"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("points.balance")
	if err != nil || !ok || v != "42" {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}

	s.Remove("points.balance")
	if _, ok, _ := s.Get("points.balance"); ok {
		t.Error("key present after Remove")
	}
}

func TestStore_FailWrites(t *testing.T) {
	s := New()
	s.Set("k", "v")
	boom := errors.New("disk full")
	s.FailWrites = boom

	if err := s.Set("k", "w"); !errors.Is(err, boom) {
		t.Errorf("Set() err = %v, want %v", err, boom)
	}
	if v, _, _ := s.Get("k"); v != "v" {
		t.Errorf("failed write changed value to %q", v)
	}
}

func TestStore_Keys(t *testing.T) {
	s := New()
	s.Set("z", "1")
	s.Set("a", "1")
	keys, _ := s.Keys()
	if len(keys) != 2 || keys[0] != "a" {
		t.Errorf("Keys() = %v", keys)
	}
}
