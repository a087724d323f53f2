package util

import "testing"

func TestShortHashStableAndSeparated(t *testing.T) {
	a := ShortHash("ab", "c")
	if a != ShortHash("ab", "c") {
		t.Fatalf("hash not stable")
	}
	if len(a) != 16 {
		t.Fatalf("want 16 hex chars, got %q", a)
	}
	if a == ShortHash("a", "bc") {
		t.Fatalf("part boundaries must affect the hash")
	}
}
