package bigcache

import (
	"context"
	"testing"
	"time"
)

func TestRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{EntryTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}
	if _, err := p.Set(ctx, "k", []byte("v"), 0, 0); err != nil {
		t.Fatal(err)
	}
	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get = %q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
	if u := p.Usage(); u.Entries != 0 || u.Hits != 1 || u.Misses != 1 {
		t.Fatalf("usage %+v", u)
	}
}

func TestNewRequiresEntryTTL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
