package vars

import (
	"errors"
	"sync"
	"testing"
)

func TestResolveFromNames(t *testing.T) {
	ix := FromNames([]string{"intra_oxy", "intra_glu", "intra_lac", "intra_energy"})

	tests := []struct {
		name string
		want int
	}{
		{"intra_oxy", 0},
		{"intra_glu", 1},
		{"intra_lac", 2},
		{"intra_energy", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.Resolve(tt.name)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestResolveUnknownName(t *testing.T) {
	ix := FromNames([]string{"a"})

	_, err := ix.Resolve("b")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCachesLookup(t *testing.T) {
	calls := 0
	ix := New(func(name string) (int, bool) {
		calls++
		if name == "oxygen" {
			return 7, true
		}
		return -1, false
	})

	for i := 0; i < 100; i++ {
		slot, err := ix.Resolve("oxygen")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slot != 7 {
			t.Fatalf("iteration %d: slot = %d, want 7", i, slot)
		}
	}
	if calls != 1 {
		t.Errorf("underlying lookup ran %d times, want 1", calls)
	}
	if ix.Lookups() != 1 {
		t.Errorf("Lookups() = %d, want 1", ix.Lookups())
	}

	// Failures are memoized as well
	for i := 0; i < 10; i++ {
		if _, err := ix.Resolve("missing"); err == nil {
			t.Fatal("expected error for missing name")
		}
	}
	if calls != 2 {
		t.Errorf("underlying lookup ran %d times after misses, want 2", calls)
	}
}

func TestResolveConcurrent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ix := New(func(name string) (int, bool) {
		mu.Lock()
		calls++
		mu.Unlock()
		return len(name), true
	})

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if slot := ix.MustResolve("glucose"); slot != 7 {
					t.Errorf("slot = %d, want 7", slot)
					return
				}
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("underlying lookup ran %d times, want 1", calls)
	}
}

func TestResolveAll(t *testing.T) {
	ix := FromNames([]string{"x", "y", "z"})

	slots, err := ix.ResolveAll("z", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 || slots[0] != 2 || slots[1] != 0 {
		t.Errorf("ResolveAll = %v, want [2 0]", slots)
	}

	if _, err := ix.ResolveAll("x", "w"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMustResolvePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown name")
		}
	}()
	FromNames(nil).MustResolve("nope")
}
