package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestForBudget(t *testing.T) {
	if c := ForBudget(0); c.MaxBytes != 256<<20 {
		t.Fatalf("default budget = %d", c.MaxBytes)
	}
	if c := ForBudget(1 << 20); c.Counters < 100_000 {
		t.Fatalf("counters floor not applied: %d", c.Counters)
	}
}

func TestSetIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	p, err := New(ForBudget(8 << 20))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if ok, err := p.Set(ctx, "catalog:fp:g0:series:1", []byte("envelope"), 0, time.Minute); err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "catalog:fp:g0:series:1")
	if err != nil || !ok || string(b) != "envelope" {
		t.Fatalf("Get = %q ok=%v err=%v", b, ok, err)
	}
	if u := p.Usage(); u.Hits != 1 || u.Entries != 1 {
		t.Fatalf("usage %+v", u)
	}
}

func TestNewRejectsZeroBudget(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
