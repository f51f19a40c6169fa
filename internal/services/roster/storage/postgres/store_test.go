package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/louisbranch/roster/internal/services/roster/storage/storagetest"
)

// These tests need a disposable database; every store they open truncates
// the roster tables.
const testURLEnv = "ROSTER_TEST_POSTGRES_URL"

func TestStoreSuite(t *testing.T) {
	url := os.Getenv(testURLEnv)
	if url == "" {
		t.Skip(testURLEnv + " not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTestStore(t, url)
	})
}

func TestOpenRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty url error")
	}
}

func TestNilStoreReportsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.ClaimPending(context.Background(), storage.MemberScope(1, 1), storage.ClaimOptions{}); err == nil {
		t.Fatal("expected not configured error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func openTestStore(t *testing.T, url string) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	if _, err := store.pool.Exec(ctx, "TRUNCATE reminders, group_members, system_groups, members, systems"); err != nil {
		t.Fatalf("truncate roster tables: %v", err)
	}
	return store
}
