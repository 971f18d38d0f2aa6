package tokenstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreConformance(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStorePurgeCreatedBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	if err := s.Save(ctx, "old"); err != nil {
		t.Fatalf("save old: %v", err)
	}
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := s.Save(ctx, "new"); err != nil {
		t.Fatalf("save new: %v", err)
	}

	removed, err := s.PurgeCreatedBefore(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 || s.Len() != 1 {
		t.Fatalf("expected one purged entry, removed=%d len=%d", removed, s.Len())
	}
	if ok, _ := s.Exists(ctx, "new"); !ok {
		t.Fatal("expected recent token to survive purge")
	}
}

func TestKeyHidesRawToken(t *testing.T) {
	k := Key("header.payload.signature")
	if len(k) != 64 || k == "header.payload.signature" {
		t.Fatalf("unexpected key %q", k)
	}
	if Key("header.payload.signature") != k {
		t.Fatal("expected key to be stable")
	}
}
