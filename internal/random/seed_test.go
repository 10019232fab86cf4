package random

import "testing"

func TestResolveSeedPinned(t *testing.T) {
	pinned := int64(99)
	got, err := ResolveSeed(&pinned)
	if err != nil {
		t.Fatalf("resolve seed: %v", err)
	}
	if got != 99 {
		t.Fatalf("seed = %d, want 99", got)
	}
}

func TestResolveSeedGenerates(t *testing.T) {
	first, err := ResolveSeed(nil)
	if err != nil {
		t.Fatalf("resolve seed: %v", err)
	}
	second, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct seeds")
	}
}
