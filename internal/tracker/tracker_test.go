package tracker

import (
	"testing"
	"time"

	"raidward/internal/event"
)

func TestSetRecordAndPrune(t *testing.T) {
	set := NewSet(time.Hour)
	now := time.Unix(1000, 0)

	if count := set.Record("k", now, 2*time.Second); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	if count := set.Record("k", now.Add(500*time.Millisecond), 2*time.Second); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := set.Count("k", now.Add(time.Second), 2*time.Second); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := set.Count("k", now.Add(5*time.Second), 2*time.Second); count != 0 {
		t.Fatalf("expected 0 after window elapsed, got %d", count)
	}
}

func TestSetCountUnknownKey(t *testing.T) {
	set := NewSet(time.Hour)
	if count := set.Count("missing", time.Now(), time.Second); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
	if set.Contains("missing") {
		t.Fatalf("Count must not create records")
	}
}

func TestSetSweep(t *testing.T) {
	set := NewSet(time.Hour)
	now := time.Unix(1000, 0)

	set.Record("old", now, time.Minute)
	set.Record("fresh", now.Add(30*time.Minute), time.Minute)

	if dropped := set.Sweep(now.Add(61 * time.Minute)); dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if set.Contains("old") {
		t.Fatalf("idle record should be gone")
	}
	if !set.Contains("fresh") {
		t.Fatalf("fresh record should survive")
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", set.Len())
	}
}

func TestActivityKeying(t *testing.T) {
	activity := NewActivity(time.Hour)
	now := time.Unix(1000, 0)

	activity.Record("g1", "u1", event.ActionChannelDelete, now, time.Minute)
	activity.Record("g1", "u1", event.ActionRoleDelete, now, time.Minute)

	if count := activity.Record("g1", "u1", event.ActionChannelDelete, now.Add(time.Second), time.Minute); count != 2 {
		t.Fatalf("kinds must not share a window, got %d", count)
	}
	if !activity.Contains("g1", "u1", event.ActionRoleDelete) {
		t.Fatalf("expected role delete record")
	}
}

func TestSpamWarnEscalation(t *testing.T) {
	spam := NewSpam(time.Hour)
	now := time.Unix(1000, 0)

	if warn := spam.Warn("g1", "u1", now); warn != 1 {
		t.Fatalf("expected warn 1, got %d", warn)
	}
	if warn := spam.Warn("g1", "u1", now); warn != 2 {
		t.Fatalf("expected warn 2, got %d", warn)
	}
	if warn := spam.Warn("g1", "u2", now); warn != 1 {
		t.Fatalf("authors must not share warn counters, got %d", warn)
	}
}

func TestSpamSweepClearsWarns(t *testing.T) {
	spam := NewSpam(time.Minute)
	now := time.Unix(1000, 0)

	spam.Warn("g1", "u1", now)
	if dropped := spam.Sweep(now.Add(2 * time.Minute)); dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if warn := spam.Warn("g1", "u1", now.Add(3*time.Minute)); warn != 1 {
		t.Fatalf("warn counter should restart after sweep, got %d", warn)
	}
}
