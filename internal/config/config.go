package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"raidward/internal/event"
	"raidward/internal/guildconf"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken       string         `yaml:"discord_token"`
	DatabasePath       string         `yaml:"database_path"`
	LogLevel           string         `yaml:"log_level"`
	AuditRetentionDays int            `yaml:"audit_retention_days"`
	Health             HealthConfig   `yaml:"health"`
	Reaper             ReaperConfig   `yaml:"reaper"`
	Defaults           DefaultsConfig `yaml:"defaults"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ReaperConfig struct {
	IntervalMinutes    int `yaml:"interval_minutes"`
	IdleHorizonMinutes int `yaml:"idle_horizon_minutes"`
}

// DefaultsConfig overrides the process-wide guild defaults. Zero values
// keep the built-in defaults.
type DefaultsConfig struct {
	Action              string `yaml:"action"`
	ActionMinutes       int    `yaml:"action_minutes"`
	ChannelDeleteLimit  int    `yaml:"channel_delete_limit"`
	RoleDeleteLimit     int    `yaml:"role_delete_limit"`
	MemberBanLimit      int    `yaml:"member_ban_limit"`
	MemberKickLimit     int    `yaml:"member_kick_limit"`
	ActionWindowMinutes int    `yaml:"action_window_minutes"`
	LockdownThreshold   int    `yaml:"lockdown_threshold"`
	LockdownMinutes     int    `yaml:"lockdown_minutes"`
	SpamMessages        int    `yaml:"spam_messages"`
	SpamWindowSeconds   int    `yaml:"spam_window_seconds"`
	SpamWarnLimit       int    `yaml:"spam_warn_limit"`
	SpamTimeoutMinutes  int    `yaml:"spam_timeout_minutes"`
	JoinLimit           int    `yaml:"join_limit"`
	JoinWindowSeconds   int    `yaml:"join_window_seconds"`
	RaidModeMinutes     int    `yaml:"raid_mode_minutes"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:       "/data/raidward.db",
		LogLevel:           "info",
		AuditRetentionDays: 14,
		Health:             HealthConfig{Enabled: false, Addr: ":8080"},
		Reaper:             ReaperConfig{IntervalMinutes: 15, IdleHorizonMinutes: 60},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// GuildDefaults builds the per-guild default config, applying any overrides
// from the defaults section.
func (c Config) GuildDefaults() guildconf.Config {
	defaults := guildconf.DefaultConfig()
	d := c.Defaults

	switch strings.ToLower(d.Action) {
	case "kick":
		defaults.Action.Type = guildconf.ActionKick
	case "timeout":
		defaults.Action.Type = guildconf.ActionTimeout
	case "ban":
		defaults.Action.Type = guildconf.ActionBan
	}
	if d.ActionMinutes > 0 {
		defaults.Action.Duration = guildconf.Duration(time.Duration(d.ActionMinutes) * time.Minute)
	}

	setLimit := func(kind event.ActionKind, limit int) {
		if limit <= 0 {
			return
		}
		threshold := defaults.Thresholds[kind]
		threshold.Limit = limit
		defaults.Thresholds[kind] = threshold
	}
	setLimit(event.ActionChannelDelete, d.ChannelDeleteLimit)
	setLimit(event.ActionRoleDelete, d.RoleDeleteLimit)
	setLimit(event.ActionMemberBan, d.MemberBanLimit)
	setLimit(event.ActionMemberKick, d.MemberKickLimit)
	if d.ActionWindowMinutes > 0 {
		for kind, threshold := range defaults.Thresholds {
			threshold.Window = guildconf.Duration(time.Duration(d.ActionWindowMinutes) * time.Minute)
			defaults.Thresholds[kind] = threshold
		}
	}

	if d.LockdownThreshold > 0 {
		defaults.Lockdown.IncidentThreshold = d.LockdownThreshold
	}
	if d.LockdownMinutes > 0 {
		defaults.Lockdown.Duration = guildconf.Duration(time.Duration(d.LockdownMinutes) * time.Minute)
	}
	if d.SpamMessages > 0 {
		defaults.Spam.MessageLimit = d.SpamMessages
	}
	if d.SpamWindowSeconds > 0 {
		defaults.Spam.Window = guildconf.Duration(time.Duration(d.SpamWindowSeconds) * time.Second)
	}
	if d.SpamWarnLimit > 0 {
		defaults.Spam.WarnLimit = d.SpamWarnLimit
	}
	if d.SpamTimeoutMinutes > 0 {
		defaults.Spam.TimeoutDuration = guildconf.Duration(time.Duration(d.SpamTimeoutMinutes) * time.Minute)
	}
	if d.JoinLimit > 0 {
		defaults.JoinBurst.Limit = d.JoinLimit
	}
	if d.JoinWindowSeconds > 0 {
		defaults.JoinBurst.Window = guildconf.Duration(time.Duration(d.JoinWindowSeconds) * time.Second)
	}
	if d.RaidModeMinutes > 0 {
		defaults.JoinBurst.RaidDuration = guildconf.Duration(time.Duration(d.RaidModeMinutes) * time.Minute)
	}
	return defaults
}

func (c Config) ReaperInterval() time.Duration {
	return time.Duration(c.Reaper.IntervalMinutes) * time.Minute
}

func (c Config) IdleHorizon() time.Duration {
	return time.Duration(c.Reaper.IdleHorizonMinutes) * time.Minute
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.AuditRetentionDays = envInt("AUDIT_RETENTION_DAYS", cfg.AuditRetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Reaper.IntervalMinutes = envInt("REAPER_INTERVAL_MINUTES", cfg.Reaper.IntervalMinutes)
	cfg.Reaper.IdleHorizonMinutes = envInt("REAPER_IDLE_MINUTES", cfg.Reaper.IdleHorizonMinutes)
	cfg.Defaults.SpamMessages = envInt("SPAM_MESSAGES", cfg.Defaults.SpamMessages)
	cfg.Defaults.SpamWindowSeconds = envInt("SPAM_WINDOW_SECONDS", cfg.Defaults.SpamWindowSeconds)
	cfg.Defaults.JoinLimit = envInt("JOIN_LIMIT", cfg.Defaults.JoinLimit)
	cfg.Defaults.JoinWindowSeconds = envInt("JOIN_WINDOW_SECONDS", cfg.Defaults.JoinWindowSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
