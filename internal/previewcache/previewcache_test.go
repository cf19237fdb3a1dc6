package previewcache

import "testing"

func TestTileKeyStable(t *testing.T) {
	k1 := TileKey("demo", 0, 0, 1, 2, []int{0, 1}, "grays")
	k2 := TileKey("demo", 0, 0, 1, 2, []int{0, 1}, "grays")
	if k1 != k2 {
		t.Fatalf("expected stable key, got %q vs %q", k1, k2)
	}
	k3 := TileKey("demo", 0, 0, 1, 2, []int{0}, "grays")
	if k1 == k3 {
		t.Fatalf("expected channel set to affect key")
	}
}

func TestPlaneKeyDistinguishesChannel(t *testing.T) {
	k0 := PlaneKey("demo", 0, 0, 1, 2, 0)
	k1 := PlaneKey("demo", 0, 0, 1, 2, 1)
	if k0 == k1 {
		t.Fatalf("expected distinct keys per channel")
	}
}

func TestManagerTileRoundTrip(t *testing.T) {
	m, err := NewManager(Config{TileCacheSizeMB: 8, TileTTL: 0, PlaneCacheEntries: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	key := TileKey("demo", 0, 0, 0, 0, []int{0}, "grays")
	if _, ok := m.GetTile(key); ok {
		t.Fatal("expected miss before Set")
	}
	want := []byte{1, 2, 3}
	if err := m.SetTile(key, want); err != nil {
		t.Fatal(err)
	}
	got, ok := m.GetTile(key)
	if !ok || string(got) != string(want) {
		t.Fatalf("got %v ok=%v want %v", got, ok, want)
	}
}

func TestManagerPlaneRoundTrip(t *testing.T) {
	m, err := NewManager(Config{TileCacheSizeMB: 8, TileTTL: 0, PlaneCacheEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	k1 := PlaneKey("demo", 0, 0, 0, 0, 0)
	k2 := PlaneKey("demo", 0, 0, 0, 0, 1)

	m.SetPlane(k1, []byte{1})
	m.SetPlane(k2, []byte{2}) // capacity 1: evicts k1 (LRU, unlike filecache's FIFO)

	if _, ok := m.GetPlane(k1); ok {
		t.Fatal("expected k1 evicted")
	}
	if v, ok := m.GetPlane(k2); !ok || v[0] != 2 {
		t.Fatalf("expected k2 present, got %v ok=%v", v, ok)
	}
}
