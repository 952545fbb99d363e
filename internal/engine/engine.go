package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"raidward/internal/audit"
	"raidward/internal/event"
	"raidward/internal/guildconf"
	"raidward/internal/metrics"
	"raidward/internal/response"
	"raidward/internal/schedule"
	"raidward/internal/tracker"

	"go.uber.org/zap"
)

// incidentWindow is the trailing span over which flagged (actor, kind)
// tuples accumulate toward a guild lockdown.
const incidentWindow = 5 * time.Minute

// ErrMalformedEvent marks events dropped at the observation boundary.
var ErrMalformedEvent = errors.New("malformed event")

// Engine routes incoming events through the sliding-window trackers and
// decides punishments, raid mode and lockdown escalation. One instance per
// process; all state lives here, not in package globals.
type Engine struct {
	conf     *guildconf.Store
	activity *tracker.Activity
	spam     *tracker.Spam
	joins    *tracker.Joins
	exec     *response.Executor
	audit    *audit.Logger
	metrics  *metrics.Metrics
	logger   *zap.Logger
	clock    schedule.Clock

	mu        sync.Mutex
	flagged   map[string]time.Time
	incidents map[string]map[string]time.Time
}

func New(conf *guildconf.Store, activity *tracker.Activity, spam *tracker.Spam, joins *tracker.Joins, exec *response.Executor, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger, clock schedule.Clock) *Engine {
	return &Engine{
		conf:      conf,
		activity:  activity,
		spam:      spam,
		joins:     joins,
		exec:      exec,
		audit:     auditLogger,
		metrics:   m,
		logger:    logger,
		clock:     clock,
		flagged:   make(map[string]time.Time),
		incidents: make(map[string]map[string]time.Time),
	}
}

// Observe is the boundary the adapter feeds. Detection defects must never
// crash the observing process: panics and malformed events are logged,
// counted and dropped here.
func (e *Engine) Observe(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.EventsDropped.Inc()
			e.logger.Error("observe panicked, event dropped", zap.Any("panic", r))
		}
	}()

	if err := e.observe(ev); err != nil {
		e.metrics.EventsDropped.Inc()
		e.logger.Warn("event dropped", zap.Error(err))
	}
}

func (e *Engine) observe(ev event.Event) error {
	if ev == nil || ev.GuildID() == "" {
		return fmt.Errorf("%w: missing guild", ErrMalformedEvent)
	}

	cfg := e.conf.Get(ev.GuildID())
	if !cfg.Enabled {
		return nil
	}

	switch typed := ev.(type) {
	case event.AdminAction:
		return e.observeAdminAction(typed, cfg)
	case event.Message:
		return e.observeMessage(typed, cfg)
	case event.MemberJoin:
		return e.observeJoin(typed, cfg)
	default:
		return fmt.Errorf("%w: unknown event type %T", ErrMalformedEvent, ev)
	}
}

func (e *Engine) observeAdminAction(ev event.AdminAction, cfg guildconf.Config) error {
	if ev.Actor == "" {
		return fmt.Errorf("%w: admin action without actor", ErrMalformedEvent)
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: unknown action kind %q", ErrMalformedEvent, ev.Kind)
	}
	// Whitelisted actors are never counted, so removing them from the
	// whitelist later starts from a cold window.
	if cfg.Whitelisted(ev.Actor) {
		return nil
	}
	e.metrics.EventsObserved.WithLabelValues("admin_action").Inc()

	now := e.at(ev.Observed)
	threshold := cfg.ThresholdFor(ev.Kind)
	count := e.activity.Record(ev.Guild, ev.Actor, ev.Kind, now, threshold.Window.Std())

	// The limit-th action is still allowed; the one after it flags. The
	// flag sticks for a window so concurrent deliveries racing past the
	// threshold punish at most once per crossing.
	if count <= threshold.Limit {
		return nil
	}
	key := tracker.ActivityKey(ev.Guild, ev.Actor, ev.Kind)
	if !e.tryFlag(key, now, threshold.Window.Std()) {
		return nil
	}

	ctx := context.Background()
	e.audit.Log(ctx, audit.LevelCrit, ev.Guild, ev.Actor, "raid_candidate",
		fmt.Sprintf("kind=%s count=%d limit=%d", ev.Kind, count, threshold.Limit))

	reason := fmt.Sprintf("raidward: multiple %s actions detected", ev.Kind)
	if err := e.exec.Punish(ctx, ev.Guild, ev.Actor, cfg.Action, reason); err != nil {
		e.logger.Warn("raid candidate punishment failed", zap.Error(err))
	}
	e.recordIncident(ctx, ev.Guild, ev.Actor, ev.Kind, now, cfg)
	return nil
}

func (e *Engine) observeMessage(ev event.Message, cfg guildconf.Config) error {
	if ev.Author == "" {
		return fmt.Errorf("%w: message without author", ErrMalformedEvent)
	}
	// Administrators are exempt from spam counting entirely.
	if ev.IsAdmin || cfg.Whitelisted(ev.Author) {
		return nil
	}
	e.metrics.EventsObserved.WithLabelValues("message").Inc()

	now := e.at(ev.Observed)
	count := e.spam.Record(ev.Guild, ev.Author, now, cfg.Spam.Window.Std())

	// The limit-th message in the window is still allowed; the next one
	// flags.
	if count <= cfg.Spam.MessageLimit {
		return nil
	}

	ctx := context.Background()
	warn := e.spam.Warn(ev.Guild, ev.Author, now)
	if warn < cfg.Spam.WarnLimit {
		e.exec.WarnSpammer(ctx, ev.Guild, ev.Channel, ev.Author, warn, cfg.Spam.WarnLimit)
		return nil
	}

	pol := guildconf.ActionPolicy{
		Type:            guildconf.ActionTimeout,
		Duration:        cfg.Spam.TimeoutDuration,
		NotifyChannelID: cfg.Action.NotifyChannelID,
	}
	if err := e.exec.Punish(ctx, ev.Guild, ev.Author, pol, "raidward: message spam after repeated warnings"); err != nil {
		e.logger.Warn("spam timeout failed", zap.Error(err))
	}
	e.recordIncident(ctx, ev.Guild, ev.Author, "spam", now, cfg)
	return nil
}

func (e *Engine) observeJoin(ev event.MemberJoin, cfg guildconf.Config) error {
	if ev.User == "" {
		return fmt.Errorf("%w: join without user", ErrMalformedEvent)
	}
	e.metrics.EventsObserved.WithLabelValues("member_join").Inc()

	now := e.at(ev.Observed)
	count := e.joins.Record(ev.Guild, now, cfg.JoinBurst.Window.Std())
	ctx := context.Background()

	// A single bot added by anyone but the owner is its own raid
	// candidate, whatever the join rate looks like.
	if ev.IsBot {
		if ev.AddedBy != "" && !ev.AddedByOwner && !cfg.Whitelisted(ev.AddedBy) {
			e.audit.Log(ctx, audit.LevelCrit, ev.Guild, ev.User, "raid_candidate", "unauthorized bot addition by "+ev.AddedBy)
			if err := e.exec.QuarantineBot(ctx, ev.Guild, ev.User, ev.AddedBy, cfg.Action.NotifyChannelID); err != nil {
				e.logger.Warn("bot quarantine failed", zap.Error(err))
			}
		}
		return nil
	}

	if count >= cfg.JoinBurst.Limit {
		e.exec.EnableRaidMode(ctx, ev.Guild, cfg.JoinBurst, cfg.Action.NotifyChannelID)
	}
	return nil
}

// recordIncident notes an identity-targeted punishment and escalates to
// lockdown once enough distinct (actor, kind) tuples have been flagged
// within the trailing incident window.
func (e *Engine) recordIncident(ctx context.Context, guildID, actorID string, kind event.ActionKind, now time.Time, cfg guildconf.Config) {
	tuple := actorID + ":" + string(kind)

	e.mu.Lock()
	guild := e.incidents[guildID]
	if guild == nil {
		guild = make(map[string]time.Time)
		e.incidents[guildID] = guild
	}
	guild[tuple] = now
	distinct := 0
	for key, at := range guild {
		if now.Sub(at) > incidentWindow {
			delete(guild, key)
			continue
		}
		distinct++
	}
	e.mu.Unlock()

	if distinct < cfg.Lockdown.IncidentThreshold {
		return
	}
	if !cfg.Lockdown.Enabled {
		e.audit.Log(ctx, audit.LevelWarn, guildID, "", "lockdown_suppressed",
			fmt.Sprintf("incident threshold reached (%d) but lockdown disabled", distinct))
		return
	}
	e.exec.EnableLockdown(ctx, guildID, cfg.Lockdown, cfg.Action.NotifyChannelID)
}

// tryFlag marks a key as flagged until its window ages out. Reports false
// when the key is already flagged, giving at-most-once punishment per
// threshold crossing.
func (e *Engine) tryFlag(key string, now time.Time, span time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if until, ok := e.flagged[key]; ok && now.Before(until) {
		return false
	}
	e.flagged[key] = now.Add(span)
	return true
}

// at substitutes the engine clock when an event carries no timestamp.
func (e *Engine) at(observed time.Time) time.Time {
	if observed.IsZero() {
		return e.clock.Now()
	}
	return observed
}

// Sweep expires stale flag markers and incident tuples. Run by the reaper
// alongside the tracker sweeps.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for key, until := range e.flagged {
		if now.After(until) {
			delete(e.flagged, key)
			dropped++
		}
	}
	for guildID, guild := range e.incidents {
		for tuple, at := range guild {
			if now.Sub(at) > incidentWindow {
				delete(guild, tuple)
				dropped++
			}
		}
		if len(guild) == 0 {
			delete(e.incidents, guildID)
		}
	}
	return dropped
}
