package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rzbill/logcache/internal/logstore"
)

func newTestRegistry(max int) *Registry {
	return New(max, logstore.NewHeapAllocator(4096))
}

func names(r *Registry) []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, e.Name)
	}
	return out
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	r := newTestRegistry(4)
	a, created, err := r.ResolveOrCreate("svc1")
	if err != nil || !created {
		t.Fatalf("first resolve: created=%v err=%v", created, err)
	}
	b, created, err := r.ResolveOrCreate("svc1")
	if err != nil || created {
		t.Fatalf("second resolve: created=%v err=%v", created, err)
	}
	if a != b {
		t.Fatalf("expected identical store")
	}
	if err := a.Append(logstore.NewRecord("2024-01-01T00:00:00", "boot")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Count() != 1 {
		t.Fatalf("record not visible through second handle")
	}
}

func TestRegistryFull(t *testing.T) {
	const k = 3
	r := newTestRegistry(k)
	for i := 0; i < k; i++ {
		if _, _, err := r.ResolveOrCreate(fmt.Sprintf("svc%d", i)); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if _, _, err := r.ResolveOrCreate("one-too-many"); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("want ErrRegistryFull, got %v", err)
	}
	if _, created, err := r.ResolveOrCreate("svc1"); err != nil || created {
		t.Fatalf("existing name should still resolve: created=%v err=%v", created, err)
	}
}

func TestRemovePreservesOrderAndAllowsReuse(t *testing.T) {
	r := newTestRegistry(4)
	for _, n := range []string{"a", "b", "c", "d"} {
		if _, _, err := r.ResolveOrCreate(n); err != nil {
			t.Fatalf("resolve %s: %v", n, err)
		}
	}
	old, _ := r.Lookup("b")
	removed, err := r.Remove("b")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != old {
		t.Fatalf("remove returned a different store")
	}
	if diff := cmp.Diff([]string{"a", "c", "d"}, names(r)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if _, err := r.Remove("b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	fresh, created, err := r.ResolveOrCreate("b")
	if err != nil || !created || fresh == old {
		t.Fatalf("expected a fresh store for reused name: created=%v err=%v", created, err)
	}
	if diff := cmp.Diff([]string{"a", "c", "d", "b"}, names(r)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestConcurrentResolveSameName(t *testing.T) {
	r := newTestRegistry(2)
	const n = 32
	stores := make([]*logstore.Store, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := r.ResolveOrCreate("shared")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			stores[i] = s
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if stores[i] != stores[0] {
			t.Fatalf("session %d saw a different store", i)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("len %d", r.Len())
	}
}

func TestRemoveStoreChecksIdentity(t *testing.T) {
	r := newTestRegistry(2)
	old, _, _ := r.ResolveOrCreate("svc")
	if _, err := r.Remove("svc"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	fresh, _, _ := r.ResolveOrCreate("svc")
	if err := r.RemoveStore(old); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale store removed: %v", err)
	}
	if got, ok := r.Lookup("svc"); !ok || got != fresh {
		t.Fatalf("fresh store lost")
	}
	if err := r.RemoveStore(fresh); err != nil {
		t.Fatalf("remove fresh: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len %d", r.Len())
	}
}
