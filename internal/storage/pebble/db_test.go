package pebblestore

import (
	"errors"
	"testing"
	"time"
)

type testMetrics struct {
	wrote int
	read  int
}

func (m *testMetrics) ObserveWrite(_ time.Duration, bytes int) { m.wrote += bytes }
func (m *testMetrics) ObserveRead(_ time.Duration, bytes int)  { m.read += bytes }

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeInterval, FsyncInterval: 2 * time.Millisecond, Metrics: metrics})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestCRUD(t *testing.T) {
	db, metrics := newTestDB(t)
	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil || string(got) != "v1" {
		t.Fatalf("get: %q %v", got, err)
	}
	if metrics.read == 0 || metrics.wrote == 0 {
		t.Fatalf("expected metrics to record bytes: %+v", metrics)
	}
	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	for _, k := range []string{"svc/b", "svc/a", "other/x", "svc0"} {
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	var keys []string
	err := db.ScanPrefix([]byte("svc/"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "svc/a" || keys[1] != "svc/b" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if err := db.CheckHealth(); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{"always": FsyncModeAlways, "interval": FsyncModeInterval, "never": FsyncModeNever} {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("%s: %v %v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
