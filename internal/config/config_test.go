package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"raidward/internal/event"
	"raidward/internal/guildconf"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected an error without a token")
	}
}

func TestLoadYAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := []byte(`
discord_token: from-file
log_level: debug
reaper:
  interval_minutes: 5
defaults:
  spam_messages: 8
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("SPAM_MESSAGES", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-env" {
		t.Fatalf("env must override file, got token %q", cfg.DiscordToken)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value lost, got log level %q", cfg.LogLevel)
	}
	if cfg.Reaper.IntervalMinutes != 5 {
		t.Fatalf("expected interval 5, got %d", cfg.Reaper.IntervalMinutes)
	}
	if cfg.Defaults.SpamMessages != 12 {
		t.Fatalf("env must override file default, got %d", cfg.Defaults.SpamMessages)
	}
	if cfg.DatabasePath != "/data/raidward.db" {
		t.Fatalf("untouched field should keep its default, got %q", cfg.DatabasePath)
	}
}

func TestGuildDefaultsOverrides(t *testing.T) {
	cfg := Config{Defaults: DefaultsConfig{
		Action:             "timeout",
		ActionMinutes:      90,
		ChannelDeleteLimit: 7,
		SpamWarnLimit:      2,
		RaidModeMinutes:    10,
	}}

	defaults := cfg.GuildDefaults()
	if defaults.Action.Type != guildconf.ActionTimeout {
		t.Fatalf("expected timeout action, got %q", defaults.Action.Type)
	}
	if defaults.Action.Duration.Std() != 90*time.Minute {
		t.Fatalf("expected 90m action duration, got %v", defaults.Action.Duration.Std())
	}
	if got := defaults.Thresholds[event.ActionChannelDelete].Limit; got != 7 {
		t.Fatalf("expected channel delete limit 7, got %d", got)
	}
	if got := defaults.Thresholds[event.ActionRoleDelete].Limit; got != 2 {
		t.Fatalf("untouched threshold changed, got role delete limit %d", got)
	}
	if defaults.Spam.WarnLimit != 2 {
		t.Fatalf("expected warn limit 2, got %d", defaults.Spam.WarnLimit)
	}
	if defaults.JoinBurst.RaidDuration.Std() != 10*time.Minute {
		t.Fatalf("expected 10m raid duration, got %v", defaults.JoinBurst.RaidDuration.Std())
	}
}

func TestGuildDefaultsZeroValuesKeepBuiltins(t *testing.T) {
	got := Config{}.GuildDefaults()
	want := guildconf.DefaultConfig()

	if got.Action.Type != want.Action.Type || got.Spam.MessageLimit != want.Spam.MessageLimit {
		t.Fatalf("zero overrides must keep built-in defaults")
	}
	if got.Enabled {
		t.Fatalf("guilds must start disabled")
	}
}
