package tracker

import (
	"sync"
	"time"

	"raidward/internal/event"
)

// Activity counts administrative actions keyed by (guild, actor, kind).
type Activity struct {
	set *Set
}

func NewActivity(retention time.Duration) *Activity {
	return &Activity{set: NewSet(retention)}
}

func ActivityKey(guildID, actorID string, kind event.ActionKind) string {
	return guildID + ":" + actorID + ":" + string(kind)
}

func (a *Activity) Record(guildID, actorID string, kind event.ActionKind, now time.Time, span time.Duration) int {
	return a.set.Record(ActivityKey(guildID, actorID, kind), now, span)
}

func (a *Activity) Contains(guildID, actorID string, kind event.ActionKind) bool {
	return a.set.Contains(ActivityKey(guildID, actorID, kind))
}

func (a *Activity) Sweep(now time.Time) int { return a.set.Sweep(now) }
func (a *Activity) Len() int                { return a.set.Len() }

// Spam counts messages keyed by (guild, author) and carries the warn
// escalation counter alongside the rate window.
type Spam struct {
	set       *Set
	mu        sync.Mutex
	warns     map[string]*warnState
	retention time.Duration
}

type warnState struct {
	count int
	last  time.Time
}

func NewSpam(retention time.Duration) *Spam {
	return &Spam{set: NewSet(retention), warns: make(map[string]*warnState), retention: retention}
}

func spamKey(guildID, authorID string) string {
	return guildID + ":" + authorID
}

func (t *Spam) Record(guildID, authorID string, now time.Time, span time.Duration) int {
	return t.set.Record(spamKey(guildID, authorID), now, span)
}

// Warn bumps the author's escalation counter and returns the new value.
func (t *Spam) Warn(guildID, authorID string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := spamKey(guildID, authorID)
	state := t.warns[key]
	if state == nil {
		state = &warnState{}
		t.warns[key] = state
	}
	state.count++
	state.last = now
	return state.count
}

func (t *Spam) Contains(guildID, authorID string) bool {
	return t.set.Contains(spamKey(guildID, authorID))
}

func (t *Spam) Sweep(now time.Time) int {
	dropped := t.set.Sweep(now)

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, state := range t.warns {
		if now.Sub(state.last) > t.retention {
			delete(t.warns, key)
			dropped++
		}
	}
	return dropped
}

// Joins counts member joins keyed by guild alone.
type Joins struct {
	set *Set
}

func NewJoins(retention time.Duration) *Joins {
	return &Joins{set: NewSet(retention)}
}

func (t *Joins) Record(guildID string, now time.Time, span time.Duration) int {
	return t.set.Record(guildID, now, span)
}

func (t *Joins) Sweep(now time.Time) int { return t.set.Sweep(now) }
