package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/conduitiot/conduit-connection/internal/cache"
)

// The store must satisfy the facade the registry programs against.
var _ cache.Cache = (*Store)(nil)

// newTestStore starts an in-process Redis and returns a store wired to it.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewFromClient(client), srv
}

func TestPutGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "ai@@T1@@dev-1", "adapter-A"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	value, found, err := store.Get(ctx, "ai@@T1@@dev-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "adapter-A" {
		t.Errorf("Get() = (%q, %v), want (adapter-A, true)", value, found)
	}
}

func TestGet_Absent(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true for absent key")
	}
}

func TestGetAll_SkipsAbsentKeys(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "a", "1"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "c", "3"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	result, err := store.GetAll(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(result) != 2 || result["a"] != "1" || result["c"] != "3" {
		t.Errorf("GetAll() = %v, want {a:1, c:3}", result)
	}
}

func TestGetAll_AllAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	result, err := store.GetAll(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("GetAll() = %v, want empty", result)
	}
}

func TestGetWithVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v1"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	first, found, err := store.GetWithVersion(ctx, "k")
	if err != nil {
		t.Fatalf("GetWithVersion() error = %v", err)
	}
	if !found || first.Value != "v1" || first.Version == "" {
		t.Fatalf("GetWithVersion() = (%+v, %v)", first, found)
	}

	// Overwrite assigns a fresh version.
	if err := store.Put(ctx, "k", "v2"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	second, _, err := store.GetWithVersion(ctx, "k")
	if err != nil {
		t.Fatalf("GetWithVersion() error = %v", err)
	}
	if second.Version == first.Version {
		t.Error("version unchanged after overwrite")
	}
}

func TestGetWithVersion_Absent(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.GetWithVersion(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetWithVersion() error = %v", err)
	}
	if found {
		t.Error("GetWithVersion() found = true for absent key")
	}
}

func TestRemoveWithVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	versioned, _, err := store.GetWithVersion(ctx, "k")
	if err != nil {
		t.Fatalf("GetWithVersion() error = %v", err)
	}

	removed, err := store.RemoveWithVersion(ctx, "k", versioned.Version)
	if err != nil {
		t.Fatalf("RemoveWithVersion() error = %v", err)
	}
	if !removed {
		t.Error("RemoveWithVersion() = false, want true")
	}

	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("entry still present after removal")
	}
}

// TestRemoveWithVersion_LostRace overwrites the entry between the
// versioned read and the removal; the removal must refuse and leave the
// new value in place.
func TestRemoveWithVersion_LostRace(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "adapter-A"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	stale, _, err := store.GetWithVersion(ctx, "k")
	if err != nil {
		t.Fatalf("GetWithVersion() error = %v", err)
	}

	// Another instance takes over.
	if err := store.Put(ctx, "k", "adapter-B"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	removed, err := store.RemoveWithVersion(ctx, "k", stale.Version)
	if err != nil {
		t.Fatalf("RemoveWithVersion() error = %v", err)
	}
	if removed {
		t.Error("RemoveWithVersion() = true with stale version")
	}

	value, found, _ := store.Get(ctx, "k")
	if !found || value != "adapter-B" {
		t.Errorf("entry = (%q, %v), want (adapter-B, true)", value, found)
	}
}

func TestRemoveWithVersion_AbsentKey(t *testing.T) {
	store, _ := newTestStore(t)

	removed, err := store.RemoveWithVersion(context.Background(), "missing", "v")
	if err != nil {
		t.Fatalf("RemoveWithVersion() error = %v", err)
	}
	if removed {
		t.Error("RemoveWithVersion() = true for absent key")
	}
}

func TestCheckAvailability(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stats, err := store.CheckAvailability(ctx)
	if err != nil {
		t.Fatalf("CheckAvailability() error = %v", err)
	}
	if stats["backend"] != "redis" {
		t.Errorf("stats = %v, want backend=redis", stats)
	}
	if stats["keys"] != "1" {
		t.Errorf("stats = %v, want keys=1", stats)
	}
}

func TestCheckAvailability_ServerDown(t *testing.T) {
	store, srv := newTestStore(t)
	srv.Close()

	if _, err := store.CheckAvailability(context.Background()); err == nil {
		t.Error("CheckAvailability() should fail with server down")
	}
}

func TestGet_ServerDown(t *testing.T) {
	store, srv := newTestStore(t)
	srv.Close()

	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Error("Get() should fail with server down")
	}
}

// TestIntegrationWithRegistrySemantics exercises the store the way the
// registry uses it: the versioned read/remove pair rejects a deregistration
// after a takeover.
func TestIntegrationWithRegistrySemantics(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	key := "ai@@T1@@dev-1"
	if err := store.Put(ctx, key, "adapter-A"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	versioned, found, err := store.GetWithVersion(ctx, key)
	if err != nil || !found {
		t.Fatalf("GetWithVersion() = (%v, %v)", found, err)
	}
	if versioned.Value != "adapter-A" {
		t.Fatalf("value = %q, want adapter-A", versioned.Value)
	}

	// adapter-B takes over before adapter-A deregisters.
	if err := store.Put(ctx, key, "adapter-B"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	removed, err := store.RemoveWithVersion(ctx, key, versioned.Version)
	if err != nil {
		t.Fatalf("RemoveWithVersion() error = %v", err)
	}
	if removed {
		t.Error("stale deregistration erased the takeover")
	}
}
