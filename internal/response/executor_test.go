package response

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"raidward/internal/adapter"
	"raidward/internal/audit"
	"raidward/internal/guildconf"
	"raidward/internal/metrics"
	"raidward/internal/storage"

	"go.uber.org/zap"
)

type fakeResponder struct {
	mu            sync.Mutex
	bans          []string
	kicks         []string
	timeouts      []string
	strips        []string
	overwrites    []string
	verifications []adapter.VerificationLevel
	notifies      []string
	channels      []adapter.Channel
	failBan       bool
	failChannel   string
}

func (f *fakeResponder) Ban(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBan {
		return errors.New("missing permissions")
	}
	f.bans = append(f.bans, guildID+":"+userID)
	return nil
}

func (f *fakeResponder) Kick(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, guildID+":"+userID)
	return nil
}

func (f *fakeResponder) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, guildID+":"+userID)
	return nil
}

func (f *fakeResponder) StripRoles(ctx context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strips = append(f.strips, guildID+":"+userID)
	return nil
}

func (f *fakeResponder) SetChannelOverwrite(ctx context.Context, guildID, channelID, roleID string, deny bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channelID == f.failChannel {
		return errors.New("no access")
	}
	state := "clear"
	if deny {
		state = "deny"
	}
	f.overwrites = append(f.overwrites, channelID+":"+state)
	return nil
}

func (f *fakeResponder) SetVerificationLevel(ctx context.Context, guildID string, level adapter.VerificationLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, level)
	return nil
}

func (f *fakeResponder) GuildChannels(ctx context.Context, guildID string) ([]adapter.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, nil
}

func (f *fakeResponder) Notify(ctx context.Context, channelID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies = append(f.notifies, message)
	return nil
}

type deferredTask struct {
	at   time.Time
	name string
	fn   func()
}

type manualDeferrer struct {
	mu    sync.Mutex
	tasks []deferredTask
}

func (d *manualDeferrer) Schedule(at time.Time, name string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, deferredTask{at: at, name: name, fn: fn})
}

func (d *manualDeferrer) fire() {
	d.mu.Lock()
	pending := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, task := range pending {
		task.fn()
	}
}

func (d *manualDeferrer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return make(chan time.Time) }

func newTestExecutor(t *testing.T, resp *fakeResponder) (*Executor, *manualDeferrer) {
	t.Helper()
	db, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	deferrer := &manualDeferrer{}
	exec := NewExecutor(resp, deferrer, audit.NewLogger(db, zap.NewNop()), metrics.New(), zap.NewNop(), fixedClock{now: time.Unix(0, 0)})
	return exec, deferrer
}

func TestPunishByPolicy(t *testing.T) {
	resp := &fakeResponder{}
	exec, _ := newTestExecutor(t, resp)
	ctx := context.Background()

	pol := guildconf.ActionPolicy{Type: guildconf.ActionBan, Duration: guildconf.Duration(time.Hour)}
	if err := exec.Punish(ctx, "g1", "u1", pol, "test"); err != nil {
		t.Fatalf("punish: %v", err)
	}
	pol.Type = guildconf.ActionKick
	_ = exec.Punish(ctx, "g1", "u2", pol, "test")
	pol.Type = guildconf.ActionTimeout
	_ = exec.Punish(ctx, "g1", "u3", pol, "test")

	if len(resp.bans) != 1 || len(resp.kicks) != 1 || len(resp.timeouts) != 1 {
		t.Fatalf("expected one of each, got bans=%d kicks=%d timeouts=%d", len(resp.bans), len(resp.kicks), len(resp.timeouts))
	}
}

func TestPunishFailureIsNonFatal(t *testing.T) {
	resp := &fakeResponder{failBan: true}
	exec, _ := newTestExecutor(t, resp)

	pol := guildconf.ActionPolicy{Type: guildconf.ActionBan}
	if err := exec.Punish(context.Background(), "g1", "u1", pol, "test"); err == nil {
		t.Fatalf("expected adapter error to surface")
	}
	if len(resp.bans) != 0 {
		t.Fatalf("no ban should be recorded")
	}
}

func TestLockdownIdempotent(t *testing.T) {
	resp := &fakeResponder{channels: []adapter.Channel{{ID: "c1"}, {ID: "c2", Voice: true}}}
	exec, deferrer := newTestExecutor(t, resp)
	ctx := context.Background()

	pol := guildconf.LockdownPolicy{Enabled: true, IncidentThreshold: 5, Duration: guildconf.Duration(30 * time.Minute)}
	if !exec.EnableLockdown(ctx, "g1", pol, "") {
		t.Fatalf("expected first enable to apply")
	}
	if exec.EnableLockdown(ctx, "g1", pol, "") {
		t.Fatalf("second enable must be a no-op")
	}
	if !exec.LockdownActive("g1") {
		t.Fatalf("lockdown should be active")
	}
	if deferrer.pending() != 1 {
		t.Fatalf("expected exactly one scheduled reversal, got %d", deferrer.pending())
	}

	denies := 0
	for _, ow := range resp.overwrites {
		if strings.HasSuffix(ow, ":deny") {
			denies++
		}
	}
	if denies != 2 {
		t.Fatalf("expected one deny pass over 2 channels, got %d", denies)
	}

	deferrer.fire()
	if exec.LockdownActive("g1") {
		t.Fatalf("reversal should clear the lockdown")
	}

	clears := 0
	for _, ow := range resp.overwrites {
		if strings.HasSuffix(ow, ":clear") {
			clears++
		}
	}
	if clears != 2 {
		t.Fatalf("expected clear pass over 2 channels, got %d", clears)
	}
}

func TestLockdownPartialFailureContinues(t *testing.T) {
	resp := &fakeResponder{
		channels:    []adapter.Channel{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		failChannel: "c2",
	}
	exec, _ := newTestExecutor(t, resp)

	pol := guildconf.LockdownPolicy{Duration: guildconf.Duration(time.Minute)}
	exec.EnableLockdown(context.Background(), "g1", pol, "")

	if len(resp.overwrites) != 2 {
		t.Fatalf("expected the pass to continue past the failing channel, got %d overwrites", len(resp.overwrites))
	}
}

func TestDisableLockdownWithoutActive(t *testing.T) {
	resp := &fakeResponder{channels: []adapter.Channel{{ID: "c1"}}}
	exec, _ := newTestExecutor(t, resp)

	exec.DisableLockdown(context.Background(), "g1", "")
	if len(resp.overwrites) != 0 {
		t.Fatalf("disable without active lockdown must not touch channels")
	}
}

func TestRaidModeReversal(t *testing.T) {
	resp := &fakeResponder{}
	exec, deferrer := newTestExecutor(t, resp)
	ctx := context.Background()

	pol := guildconf.JoinBurstPolicy{Limit: 5, Window: guildconf.Duration(10 * time.Second), RaidDuration: guildconf.Duration(5 * time.Minute)}
	if !exec.EnableRaidMode(ctx, "g1", pol, "") {
		t.Fatalf("expected raid mode to enable")
	}
	if exec.EnableRaidMode(ctx, "g1", pol, "") {
		t.Fatalf("second enable must be a no-op")
	}
	if len(resp.verifications) != 1 || resp.verifications[0] != adapter.VerificationHigh {
		t.Fatalf("expected one raise to high, got %v", resp.verifications)
	}

	deferrer.fire()
	if exec.RaidModeActive("g1") {
		t.Fatalf("raid mode should be cleared")
	}
	if len(resp.verifications) != 2 || resp.verifications[1] != adapter.VerificationMedium {
		t.Fatalf("expected restore to medium, got %v", resp.verifications)
	}
}

func TestQuarantineBot(t *testing.T) {
	resp := &fakeResponder{}
	exec, _ := newTestExecutor(t, resp)

	if err := exec.QuarantineBot(context.Background(), "g1", "bot1", "intruder", ""); err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if len(resp.strips) != 1 || resp.strips[0] != "g1:bot1" {
		t.Fatalf("expected bot roles stripped, got %v", resp.strips)
	}
}
