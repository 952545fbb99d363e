package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetGuildConfig(ctx, "g1"); err != nil || ok {
		t.Fatalf("expected no rows, got ok=%t err=%v", ok, err)
	}

	doc := []byte(`{"enabled":true}`)
	if err := store.PutGuildConfig(ctx, "g1", doc); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.GetGuildConfig(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if string(got) != string(doc) {
		t.Fatalf("expected %s, got %s", doc, got)
	}

	// Upsert replaces the document.
	if err := store.PutGuildConfig(ctx, "g1", []byte(`{"enabled":false}`)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ = store.GetGuildConfig(ctx, "g1")
	if string(got) != `{"enabled":false}` {
		t.Fatalf("expected updated doc, got %s", got)
	}

	configs, err := store.ListGuildConfigs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected 1 config, got %d", len(configs))
	}
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := AuditLog{
		IncidentID: "inc-1",
		GuildID:    "g1",
		UserID:     "u1",
		Level:      "CRIT",
		Event:      "punish",
		Details:    "action=ban",
		CreatedAt:  time.Now(),
	}
	if err := store.AddAuditLog(ctx, entry); err != nil {
		t.Fatalf("add audit log: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].IncidentID != "inc-1" || logs[0].Event != "punish" {
		t.Fatalf("unexpected log %+v", logs[0])
	}

	if logs, _ := store.ListAuditLogs(ctx, "g2", time.Now().Add(-time.Hour)); len(logs) != 0 {
		t.Fatalf("guilds must not share audit logs")
	}
}

func TestCleanupAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := AuditLog{IncidentID: "inc-old", GuildID: "g1", Event: "punish", CreatedAt: now.AddDate(0, 0, -30)}
	fresh := AuditLog{IncidentID: "inc-new", GuildID: "g1", Event: "punish", CreatedAt: now}
	if err := store.AddAuditLog(ctx, old); err != nil {
		t.Fatalf("add old: %v", err)
	}
	if err := store.AddAuditLog(ctx, fresh); err != nil {
		t.Fatalf("add fresh: %v", err)
	}

	removed, err := store.CleanupAuditLogs(ctx, now.AddDate(0, 0, -14))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].IncidentID != "inc-new" {
		t.Fatalf("expected only the fresh entry, got %+v", logs)
	}
}
