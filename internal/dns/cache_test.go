package dns

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{"no ttl keeps forever", 0, 24 * time.Hour, true},
		{"within ttl", time.Minute, 30 * time.Second, true},
		{"expired", time.Minute, 2 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMemoryCache(tt.ttl)
			current := now
			c.now = func() time.Time { return current }

			c.Put("example.com", Result{IPv4: []string{"1.2.3.4"}, IPv6: []string{}})
			current = current.Add(tt.advance)

			_, ok := c.Get("example.com")
			if ok != tt.wantHit {
				t.Errorf("Get() hit = %v, want %v", ok, tt.wantHit)
			}
			if !tt.wantHit && c.Len() != 0 {
				t.Errorf("expired entry not removed, Len() = %d", c.Len())
			}
		})
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache(0)
	c.Put("a.example", emptyResult())
	c.Put("b.example", emptyResult())
	c.Invalidate("a.example")

	if _, ok := c.Get("a.example"); ok {
		t.Error("invalidated entry still present")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestExpiredEntryForcesLookup(t *testing.T) {
	fake := newFakeExchanger()
	fake.answers["ttl.example"] = []string{"9.9.9.9"}

	cache := NewMemoryCache(time.Minute)
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	r := newTestResolver(t, fake, Options{Cache: cache})

	if _, err := r.Resolve(context.Background(), "ttl.example"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := r.Resolve(context.Background(), "ttl.example"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if fake.callCount() != 2 {
		t.Fatalf("calls = %d, want 2 before expiry", fake.callCount())
	}

	current = current.Add(2 * time.Minute)
	if _, err := r.Resolve(context.Background(), "ttl.example"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if fake.callCount() != 4 {
		t.Errorf("calls = %d, want 4 after expiry", fake.callCount())
	}
}
