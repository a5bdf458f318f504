package catalog

import (
	"errors"
	"testing"

	pebblestore "github.com/rzbill/logcache/internal/storage/pebble"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestEnsureIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	m1, err := c.Ensure("svc1")
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := c.Ensure("svc1")
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.Name != m2.Name || m1.CreatedAtMs != m2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
}

func TestRecordFlushAccumulates(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.Ensure("svc1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := c.RecordFlush("svc1", "/tmp/svc1.log", 3); err != nil {
		t.Fatalf("flush1: %v", err)
	}
	m, err := c.RecordFlush("svc1", "/tmp/svc1.log", 2)
	if err != nil {
		t.Fatalf("flush2: %v", err)
	}
	if m.PersistedRecords != 5 || m.Flushes != 2 || m.File != "/tmp/svc1.log" {
		t.Fatalf("unexpected meta %+v", m)
	}
}

func TestList(t *testing.T) {
	c := newTestCatalog(t)
	for _, n := range []string{"b", "a"} {
		if _, err := c.Ensure(n); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	list, err := c.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := c.Get("missing"); !errors.Is(err, pebblestore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.Ensure("svc1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := c.Delete("svc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get("svc1"); !errors.Is(err, pebblestore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.Delete("svc1"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
