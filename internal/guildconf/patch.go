package guildconf

import (
	"raidward/internal/event"
)

// Patch is a partial update applied by an administrative command. Nil
// fields leave the current value untouched; nested sections merge field by
// field.
type Patch struct {
	Enabled         *bool
	Thresholds      map[event.ActionKind]Threshold
	Action          *ActionPatch
	WhitelistAdd    []string
	WhitelistRemove []string
	Lockdown        *LockdownPatch
	Spam            *SpamPatch
	JoinBurst       *JoinBurstPatch
}

type ActionPatch struct {
	Type            *ActionType
	Duration        *Duration
	NotifyChannelID *string
}

type LockdownPatch struct {
	Enabled           *bool
	IncidentThreshold *int
	Duration          *Duration
}

type SpamPatch struct {
	MessageLimit    *int
	Window          *Duration
	WarnLimit       *int
	TimeoutDuration *Duration
}

type JoinBurstPatch struct {
	Limit        *int
	Window       *Duration
	RaidDuration *Duration
}

// Merge returns a new config with the patch applied over c. c is not
// modified.
func (c Config) Merge(p Patch) Config {
	out := c.Clone()

	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	for kind, threshold := range p.Thresholds {
		out.Thresholds[kind] = threshold
	}
	if p.Action != nil {
		if p.Action.Type != nil {
			out.Action.Type = *p.Action.Type
		}
		if p.Action.Duration != nil {
			out.Action.Duration = *p.Action.Duration
		}
		if p.Action.NotifyChannelID != nil {
			out.Action.NotifyChannelID = *p.Action.NotifyChannelID
		}
	}
	for _, id := range p.WhitelistAdd {
		if !out.Whitelisted(id) {
			out.Whitelist = append(out.Whitelist, id)
		}
	}
	for _, id := range p.WhitelistRemove {
		for i, existing := range out.Whitelist {
			if existing == id {
				out.Whitelist = append(out.Whitelist[:i], out.Whitelist[i+1:]...)
				break
			}
		}
	}
	if p.Lockdown != nil {
		if p.Lockdown.Enabled != nil {
			out.Lockdown.Enabled = *p.Lockdown.Enabled
		}
		if p.Lockdown.IncidentThreshold != nil {
			out.Lockdown.IncidentThreshold = *p.Lockdown.IncidentThreshold
		}
		if p.Lockdown.Duration != nil {
			out.Lockdown.Duration = *p.Lockdown.Duration
		}
	}
	if p.Spam != nil {
		if p.Spam.MessageLimit != nil {
			out.Spam.MessageLimit = *p.Spam.MessageLimit
		}
		if p.Spam.Window != nil {
			out.Spam.Window = *p.Spam.Window
		}
		if p.Spam.WarnLimit != nil {
			out.Spam.WarnLimit = *p.Spam.WarnLimit
		}
		if p.Spam.TimeoutDuration != nil {
			out.Spam.TimeoutDuration = *p.Spam.TimeoutDuration
		}
	}
	if p.JoinBurst != nil {
		if p.JoinBurst.Limit != nil {
			out.JoinBurst.Limit = *p.JoinBurst.Limit
		}
		if p.JoinBurst.Window != nil {
			out.JoinBurst.Window = *p.JoinBurst.Window
		}
		if p.JoinBurst.RaidDuration != nil {
			out.JoinBurst.RaidDuration = *p.JoinBurst.RaidDuration
		}
	}
	return out
}
