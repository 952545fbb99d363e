package guildconf

import (
	"encoding/json"
	"time"

	"raidward/internal/event"
)

// Duration marshals as integer milliseconds, the layout the stored guild
// documents use.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

type ActionType string

const (
	ActionBan     ActionType = "ban"
	ActionKick    ActionType = "kick"
	ActionTimeout ActionType = "timeout"
)

type Threshold struct {
	Limit  int      `json:"limit"`
	Window Duration `json:"window"`
}

type ActionPolicy struct {
	Type            ActionType `json:"type"`
	Duration        Duration   `json:"duration"`
	NotifyChannelID string     `json:"notifyChannelId,omitempty"`
}

type LockdownPolicy struct {
	Enabled           bool     `json:"enabled"`
	IncidentThreshold int      `json:"threshold"`
	Duration          Duration `json:"duration"`
}

type SpamPolicy struct {
	MessageLimit    int      `json:"messageLimit"`
	Window          Duration `json:"window"`
	WarnLimit       int      `json:"warnLimit"`
	TimeoutDuration Duration `json:"timeoutDuration"`
}

type JoinBurstPolicy struct {
	Limit        int      `json:"limit"`
	Window       Duration `json:"window"`
	RaidDuration Duration `json:"raidDuration"`
}

// Config is the per-guild policy document. It is always fully populated:
// stored partial documents are merged over the process defaults on load.
type Config struct {
	Enabled    bool                           `json:"enabled"`
	Thresholds map[event.ActionKind]Threshold `json:"thresholds"`
	Action     ActionPolicy                   `json:"action"`
	Whitelist  []string                       `json:"whitelist"`
	Lockdown   LockdownPolicy                 `json:"lockdown"`
	Spam       SpamPolicy                     `json:"spam"`
	JoinBurst  JoinBurstPolicy                `json:"joinBurst"`
}

// DefaultConfig mirrors the defaults the engine ships with. Guilds start
// disabled until an administrator opts in.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Thresholds: map[event.ActionKind]Threshold{
			event.ActionChannelDelete: {Limit: 3, Window: Duration(5 * time.Minute)},
			event.ActionRoleDelete:    {Limit: 2, Window: Duration(5 * time.Minute)},
			event.ActionMemberBan:     {Limit: 3, Window: Duration(10 * time.Minute)},
			event.ActionMemberKick:    {Limit: 3, Window: Duration(10 * time.Minute)},
		},
		Action: ActionPolicy{
			Type:     ActionBan,
			Duration: Duration(24 * time.Hour),
		},
		Whitelist: nil,
		Lockdown: LockdownPolicy{
			Enabled:           false,
			IncidentThreshold: 5,
			Duration:          Duration(30 * time.Minute),
		},
		Spam: SpamPolicy{
			MessageLimit:    5,
			Window:          Duration(5 * time.Second),
			WarnLimit:       3,
			TimeoutDuration: Duration(5 * time.Minute),
		},
		JoinBurst: JoinBurstPolicy{
			Limit:        5,
			Window:       Duration(10 * time.Second),
			RaidDuration: Duration(5 * time.Minute),
		},
	}
}

// Clone deep-copies the config so cached values can be replaced wholesale
// without sharing the thresholds map or whitelist slice.
func (c Config) Clone() Config {
	out := c
	out.Thresholds = make(map[event.ActionKind]Threshold, len(c.Thresholds))
	for kind, threshold := range c.Thresholds {
		out.Thresholds[kind] = threshold
	}
	out.Whitelist = append([]string(nil), c.Whitelist...)
	return out
}

func (c Config) Whitelisted(actorID string) bool {
	for _, id := range c.Whitelist {
		if id == actorID {
			return true
		}
	}
	return false
}

// ThresholdFor falls back to the built-in default for the kind when an old
// stored document is missing it, so a threshold lookup never returns zero.
func (c Config) ThresholdFor(kind event.ActionKind) Threshold {
	if threshold, ok := c.Thresholds[kind]; ok && threshold.Limit > 0 {
		return threshold
	}
	return DefaultConfig().Thresholds[kind]
}
