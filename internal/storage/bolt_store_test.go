package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newBoltStore(t *testing.T, ttl time.Duration) Store {
	t.Helper()
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "links.db"), Options{
		LinkTTL:         ttl,
		CleanupInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreMarksAndFindsLinks(t *testing.T) {
	store := newBoltStore(t, time.Hour)

	seen, err := store.SeenLink("https://zenn.dev/a/articles/1")
	if err != nil {
		t.Fatalf("SeenLink: %v", err)
	}
	if seen {
		t.Fatalf("fresh store should not know the link")
	}

	if err := store.MarkLink("https://zenn.dev/a/articles/1"); err != nil {
		t.Fatalf("MarkLink: %v", err)
	}

	seen, err = store.SeenLink("https://zenn.dev/a/articles/1")
	if err != nil {
		t.Fatalf("SeenLink: %v", err)
	}
	if !seen {
		t.Fatalf("marked link should be seen")
	}

	seen, err = store.SeenLink("https://zenn.dev/a/articles/2")
	if err != nil {
		t.Fatalf("SeenLink: %v", err)
	}
	if seen {
		t.Fatalf("different link should not be seen")
	}
}

func TestBoltStoreExpiresLinks(t *testing.T) {
	// Expiry is stored with second precision, so a nanosecond TTL is already
	// in the past by the time the link is checked.
	store := newBoltStore(t, time.Nanosecond)

	if err := store.MarkLink("https://zenn.dev/a/articles/1"); err != nil {
		t.Fatalf("MarkLink: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	seen, err := store.SeenLink("https://zenn.dev/a/articles/1")
	if err != nil {
		t.Fatalf("SeenLink: %v", err)
	}
	if seen {
		t.Fatalf("expired link should not be seen")
	}
}

func TestNoopStoreNeverSeesLinks(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.MarkLink("https://example.com"); err != nil {
		t.Fatalf("MarkLink: %v", err)
	}
	seen, err := store.SeenLink("https://example.com")
	if err != nil {
		t.Fatalf("SeenLink: %v", err)
	}
	if seen {
		t.Fatalf("noop store should never report links as seen")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported storage type")
	}
}
