package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestRememberAndSeen(t *testing.T) {
	c := New(Config{})
	now := time.Unix(1700000000, 0)

	if c.Seen("LB-1", now) {
		t.Error("unknown id reported seen")
	}
	c.Remember("LB-1", 1, now)
	if !c.Seen("LB-1", now) {
		t.Error("remembered id not seen")
	}
	if !c.Seen("LB-1", now.Add(29*time.Minute)) {
		t.Error("id inside TTL not seen")
	}
}

func TestTTLExpiry(t *testing.T) {
	// WHAT: an entry past its TTL reads as unseen and is dropped.
	// WHY: a posting that sits on the board longer than the TTL is allowed
	// to re-emit — stale suppression would hide a load that is still live.
	c := New(Config{TTL: 30 * time.Minute})
	now := time.Unix(1700000000, 0)

	c.Remember("LB-1", 1, now)
	if c.Seen("LB-1", now.Add(31*time.Minute)) {
		t.Error("aged id still seen")
	}
	if c.Len() != 0 {
		t.Errorf("aged entry not dropped: len %d", c.Len())
	}
}

func TestRememberIdempotent(t *testing.T) {
	// WHY: TTL runs from first discovery. Re-sighting a load must not
	// refresh the clock, or a permanently reposted load never expires.
	c := New(Config{TTL: 30 * time.Minute})
	t0 := time.Unix(1700000000, 0)

	c.Remember("LB-1", 1, t0)
	c.Remember("LB-1", 5, t0.Add(20*time.Minute))

	if c.Seen("LB-1", t0.Add(31*time.Minute)) {
		t.Error("re-remember refreshed firstSeen")
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	// WHAT: 60 inserts into a 50-entry cache leave the 50 newest.
	// WHY: sweep order is aged entries first, then oldest-by-firstSeen;
	// with nothing aged, the earliest discoveries go.
	c := New(Config{TTL: time.Hour, MaxEntries: 50})
	t0 := time.Unix(1700000000, 0)

	for i := 0; i < 60; i++ {
		c.Remember(fmt.Sprintf("LB-%d", i), 1, t0.Add(time.Duration(i)*time.Second))
	}

	if c.Len() != 50 {
		t.Fatalf("len: got %d, want 50", c.Len())
	}
	now := t0.Add(2 * time.Minute)
	for i := 0; i < 10; i++ {
		if c.Seen(fmt.Sprintf("LB-%d", i), now) {
			t.Errorf("oldest entry LB-%d survived the trim", i)
		}
	}
	for i := 10; i < 60; i++ {
		if !c.Seen(fmt.Sprintf("LB-%d", i), now) {
			t.Errorf("newer entry LB-%d was evicted", i)
		}
	}
}

func TestSweepAgedBeforeOldest(t *testing.T) {
	c := New(Config{TTL: 10 * time.Minute, MaxEntries: 100})
	t0 := time.Unix(1700000000, 0)

	c.Remember("stale", 1, t0)
	c.Remember("fresh", 2, t0.Add(9*time.Minute))

	aged, trimmed := c.Sweep(t0.Add(11 * time.Minute))
	if aged != 1 || trimmed != 0 {
		t.Errorf("sweep: got aged=%d trimmed=%d, want 1,0", aged, trimmed)
	}
	if !c.Seen("fresh", t0.Add(11*time.Minute)) {
		t.Error("fresh entry removed by sweep")
	}
}

func TestClear(t *testing.T) {
	c := New(Config{})
	now := time.Unix(1700000000, 0)
	c.Remember("LB-1", 1, now)
	c.Remember("LB-2", 1, now)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("len after clear: got %d", c.Len())
	}
	if c.Seen("LB-1", now) {
		t.Error("cleared id still seen")
	}
}
