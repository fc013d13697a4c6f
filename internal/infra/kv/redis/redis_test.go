package redis

import (
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

var _ domain.KVStore = (*Store)(nil)

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"inkwell", []string{"points.balance"}, "inkwell:points.balance"},
		{"inkwell", []string{"a", "", "b"}, "inkwell:a:b"},
		{"", []string{"sync.mode"}, "sync.mode"},
	}
	for _, tt := range tests {
		s := &Store{prefix: tt.prefix}
		if got := s.Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr != "127.0.0.1:6379" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Prefix != "inkwell" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
}

// TestStore_Live runs against a real server when INKWELL_TEST_REDIS_ADDR is set.
func TestStore_Live(t *testing.T) {
	addr := os.Getenv("INKWELL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INKWELL_TEST_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.Prefix = "inkwell-test-" + uuid.NewString()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get("points.balance"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	if err := s.Set("points.balance", "75"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("points.balance")
	if err != nil || !ok || v != "75" {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}
	if err := s.Remove("points.balance"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("points.balance"); ok {
		t.Error("key present after Remove")
	}
}
