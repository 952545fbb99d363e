package response

import (
	"context"
	"fmt"
	"sync"
	"time"

	"raidward/internal/adapter"
	"raidward/internal/audit"
	"raidward/internal/guildconf"
	"raidward/internal/metrics"
	"raidward/internal/schedule"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deferrer schedules a function to run at a deadline. Satisfied by
// *schedule.Scheduler; tests use a manual implementation.
type Deferrer interface {
	Schedule(at time.Time, name string, fn func())
}

// Executor carries out decided punishments and the guild-wide lockdown and
// raid-mode transitions, including their timed reversal.
type Executor struct {
	resp    adapter.Responder
	sched   Deferrer
	audit   *audit.Logger
	metrics *metrics.Metrics
	logger  *zap.Logger
	clock   schedule.Clock

	mu        sync.Mutex
	lockdowns map[string]bool
	raidModes map[string]bool
	limiters  map[string]*rate.Limiter
}

func NewExecutor(resp adapter.Responder, sched Deferrer, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger, clock schedule.Clock) *Executor {
	return &Executor{
		resp:      resp,
		sched:     sched,
		audit:     auditLogger,
		metrics:   m,
		logger:    logger,
		clock:     clock,
		lockdowns: make(map[string]bool),
		raidModes: make(map[string]bool),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Punish executes the configured action against the actor. An adapter
// rejection (missing permission, unknown target) is operational: it is
// logged, audited and returned, but counters are never rolled back and no
// retry is attempted.
func (e *Executor) Punish(ctx context.Context, guildID, userID string, pol guildconf.ActionPolicy, reason string) error {
	var err error
	switch pol.Type {
	case guildconf.ActionKick:
		err = e.resp.Kick(ctx, guildID, userID, reason)
	case guildconf.ActionTimeout:
		err = e.resp.Timeout(ctx, guildID, userID, pol.Duration.Std(), reason)
	default:
		err = e.resp.Ban(ctx, guildID, userID, reason)
	}
	if err != nil {
		e.logger.Warn("punishment rejected by adapter",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.String("action", string(pol.Type)),
			zap.Error(err))
		e.audit.Log(ctx, audit.LevelWarn, guildID, userID, "punish_failed", err.Error())
		return fmt.Errorf("punish %s: %w", userID, err)
	}

	e.metrics.Punishments.WithLabelValues(string(pol.Type)).Inc()
	e.audit.Log(ctx, audit.LevelCrit, guildID, userID, "punish", fmt.Sprintf("action=%s reason=%q", pol.Type, reason))
	e.notify(ctx, guildID, pol.NotifyChannelID,
		fmt.Sprintf("security action: user %s received %s (%s)", userID, pol.Type, reason))
	return nil
}

// WarnSpammer posts a user-visible warning in the channel the spam happened
// in. No platform punishment is attached.
func (e *Executor) WarnSpammer(ctx context.Context, guildID, channelID, userID string, warn, limit int) {
	e.metrics.Warnings.Inc()
	e.audit.Log(ctx, audit.LevelWarn, guildID, userID, "spam_warn", fmt.Sprintf("warning %d/%d", warn, limit))
	e.notify(ctx, guildID, channelID,
		fmt.Sprintf("<@%s> please stop spamming. Warning %d/%d", userID, warn, limit))
}

// EnableLockdown freezes communication guild-wide. It is idempotent: a
// second call while a lockdown is active does nothing and reports false.
func (e *Executor) EnableLockdown(ctx context.Context, guildID string, pol guildconf.LockdownPolicy, notifyChannel string) bool {
	e.mu.Lock()
	if e.lockdowns[guildID] {
		e.mu.Unlock()
		return false
	}
	e.lockdowns[guildID] = true
	e.mu.Unlock()

	e.metrics.Lockdowns.Inc()
	e.audit.Log(ctx, audit.LevelCrit, guildID, "", "lockdown", "lockdown initiated")
	e.overwritePass(ctx, guildID, true)
	e.notify(ctx, guildID, notifyChannel, "lockdown enabled: channels are frozen while the incident is contained")

	e.sched.Schedule(e.clock.Now().Add(pol.Duration.Std()), "lockdown-exit:"+guildID, func() {
		e.DisableLockdown(context.Background(), guildID, notifyChannel)
	})
	return true
}

// DisableLockdown lifts an active lockdown; calling it when none is active
// is a no-op.
func (e *Executor) DisableLockdown(ctx context.Context, guildID, notifyChannel string) {
	e.mu.Lock()
	if !e.lockdowns[guildID] {
		e.mu.Unlock()
		return
	}
	delete(e.lockdowns, guildID)
	e.mu.Unlock()

	e.overwritePass(ctx, guildID, false)
	e.audit.Log(ctx, audit.LevelInfo, guildID, "", "lockdown", "lockdown lifted")
	e.notify(ctx, guildID, notifyChannel, "lockdown lifted: returning to normal operations")
}

// LockdownActive reports the current lockdown state for a guild.
func (e *Executor) LockdownActive(guildID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockdowns[guildID]
}

// EnableRaidMode raises the guild's verification level and schedules the
// reversal. Idempotent like EnableLockdown.
func (e *Executor) EnableRaidMode(ctx context.Context, guildID string, pol guildconf.JoinBurstPolicy, notifyChannel string) bool {
	e.mu.Lock()
	if e.raidModes[guildID] {
		e.mu.Unlock()
		return false
	}
	e.raidModes[guildID] = true
	e.mu.Unlock()

	e.metrics.RaidModes.Inc()
	e.audit.Log(ctx, audit.LevelCrit, guildID, "", "raid_mode", "raid mode enabled")
	if err := e.resp.SetVerificationLevel(ctx, guildID, adapter.VerificationHigh); err != nil {
		e.logger.Warn("raising verification level failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	e.notify(ctx, guildID, notifyChannel, "raid mode enabled: join burst detected, verification raised")

	e.sched.Schedule(e.clock.Now().Add(pol.RaidDuration.Std()), "raid-mode-exit:"+guildID, func() {
		e.DisableRaidMode(context.Background(), guildID, notifyChannel)
	})
	return true
}

func (e *Executor) DisableRaidMode(ctx context.Context, guildID, notifyChannel string) {
	e.mu.Lock()
	if !e.raidModes[guildID] {
		e.mu.Unlock()
		return
	}
	delete(e.raidModes, guildID)
	e.mu.Unlock()

	if err := e.resp.SetVerificationLevel(ctx, guildID, adapter.VerificationMedium); err != nil {
		e.logger.Warn("restoring verification level failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	e.audit.Log(ctx, audit.LevelInfo, guildID, "", "raid_mode", "raid mode disabled")
	e.notify(ctx, guildID, notifyChannel, "raid mode disabled: returning to normal operations")
}

func (e *Executor) RaidModeActive(guildID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.raidModes[guildID]
}

// QuarantineBot strips an unauthorized bot's roles. Used when a non-owner
// adds a bot account, independent of any threshold.
func (e *Executor) QuarantineBot(ctx context.Context, guildID, botID, addedBy, notifyChannel string) error {
	if err := e.resp.StripRoles(ctx, guildID, botID); err != nil {
		e.logger.Warn("stripping bot roles failed",
			zap.String("guild_id", guildID),
			zap.String("bot_id", botID),
			zap.Error(err))
		e.audit.Log(ctx, audit.LevelWarn, guildID, botID, "bot_quarantine_failed", err.Error())
		return fmt.Errorf("strip roles for %s: %w", botID, err)
	}

	e.metrics.Punishments.WithLabelValues("stripRoles").Inc()
	e.audit.Log(ctx, audit.LevelCrit, guildID, botID, "bot_quarantine", "added_by="+addedBy)
	e.notify(ctx, guildID, notifyChannel,
		fmt.Sprintf("security alert: bot %s added by non-owner %s, all roles removed", botID, addedBy))
	return nil
}

// overwritePass applies or clears the deny overwrite on every channel as a
// single best-effort batch: a failure on one channel does not abort the
// rest.
func (e *Executor) overwritePass(ctx context.Context, guildID string, deny bool) {
	channels, err := e.resp.GuildChannels(ctx, guildID)
	if err != nil {
		e.logger.Error("listing channels for lockdown pass failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}

	role := adapter.EveryoneRole(guildID)
	for _, channel := range channels {
		if err := e.resp.SetChannelOverwrite(ctx, guildID, channel.ID, role, deny); err != nil {
			e.logger.Warn("channel overwrite failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channel.ID),
				zap.Bool("deny", deny),
				zap.Error(err))
		}
	}
}

// notify delivers a best-effort message. Failures are swallowed, and a
// per-guild limiter keeps an incident from amplifying into a notification
// flood.
func (e *Executor) notify(ctx context.Context, guildID, channelID, message string) {
	if channelID == "" {
		return
	}

	e.mu.Lock()
	limiter := e.limiters[guildID]
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(5*time.Second), 5)
		e.limiters[guildID] = limiter
	}
	e.mu.Unlock()

	if !limiter.Allow() {
		e.logger.Debug("notification suppressed by limiter", zap.String("guild_id", guildID))
		return
	}
	if err := e.resp.Notify(ctx, channelID, message); err != nil {
		e.logger.Debug("notification failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
