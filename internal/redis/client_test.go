package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("creating test redis client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestPresence(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if got, err := c.GetPresence(ctx, 1); err != nil || got != "" {
		t.Fatalf("GetPresence(unset) = %q, %v", got, err)
	}
	if err := c.SetPresence(ctx, 1, "busy"); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	got, err := c.GetPresence(ctx, 1)
	if err != nil || got != "busy" {
		t.Errorf("GetPresence = %q, %v", got, err)
	}
	if ttl := mr.TTL("presence:1"); ttl != presenceTTL {
		t.Errorf("ttl = %v, want %v", ttl, presenceTTL)
	}

	mr.FastForward(presenceTTL + time.Second)
	if got, _ := c.GetPresence(ctx, 1); got != "" {
		t.Errorf("presence survived its TTL: %q", got)
	}
}

func TestGetPresences(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	c.SetPresence(ctx, 1, "available")
	c.SetPresence(ctx, 3, "away")

	got, err := c.GetPresences(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("GetPresences: %v", err)
	}
	if len(got) != 2 || got[1] != "available" || got[3] != "away" {
		t.Errorf("GetPresences = %v", got)
	}

	empty, err := c.GetPresences(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetPresences(nil) = %v, %v", empty, err)
	}
}

func TestDeletePresence(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	c.SetPresence(ctx, 1, "busy")
	if err := c.DeletePresence(ctx, 1); err != nil {
		t.Fatalf("DeletePresence: %v", err)
	}
	if got, _ := c.GetPresence(ctx, 1); got != "" {
		t.Errorf("presence = %q after delete", got)
	}
}

func TestCheckRateLimit(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		allowed, count, ttl, err := c.CheckRateLimit(ctx, "rl:test", 2, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit: %v", err)
		}
		if !allowed || count != int64(i) {
			t.Errorf("call %d: allowed=%v count=%d", i, allowed, count)
		}
		if ttl <= 0 || ttl > time.Minute.Milliseconds() {
			t.Errorf("ttl = %d ms", ttl)
		}
	}

	allowed, count, _, err := c.CheckRateLimit(ctx, "rl:test", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if allowed || count != 3 {
		t.Errorf("third call: allowed=%v count=%d", allowed, count)
	}

	mr.FastForward(time.Minute + time.Second)
	if allowed, _, _, _ := c.CheckRateLimit(ctx, "rl:test", 2, time.Minute); !allowed {
		t.Error("window did not reset")
	}
}
