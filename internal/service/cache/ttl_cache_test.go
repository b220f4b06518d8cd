package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	if _, ok, err := c.GetBytes(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss should be (false, nil), got ok=%v err=%v", ok, err)
	}

	want := []byte(`{"river_level_m":3.2}`)
	if err := c.SetBytes(ctx, "forecast:thu-bon-01:1h", want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetBytes(ctx, "forecast:thu-bon-01:1h")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	clock := time.Date(2024, 10, 2, 6, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	if err := c.SetBytes(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.GetBytes(ctx, "k"); !ok {
		t.Fatal("entry should be live before the deadline")
	}

	clock = clock.Add(31 * time.Second)
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatal("entry should expire after the deadline")
	}
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatal("expired entry should stay gone")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	clock := time.Date(2024, 10, 2, 6, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	if err := c.SetBytes(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock = clock.Add(365 * 24 * time.Hour)
	if _, ok, _ := c.GetBytes(ctx, "k"); !ok {
		t.Fatal("zero-ttl entry should not expire")
	}
}
