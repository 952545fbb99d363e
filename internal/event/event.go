package event

import (
	"time"
)

// ActionKind identifies a privileged administrative action observed in a
// guild's audit stream.
type ActionKind string

const (
	ActionChannelDelete ActionKind = "channelDelete"
	ActionRoleDelete    ActionKind = "roleDelete"
	ActionMemberBan     ActionKind = "memberBan"
	ActionMemberKick    ActionKind = "memberKick"
)

// Kinds lists every action kind the engine rate-checks.
var Kinds = []ActionKind{ActionChannelDelete, ActionRoleDelete, ActionMemberBan, ActionMemberKick}

func (k ActionKind) Valid() bool {
	switch k {
	case ActionChannelDelete, ActionRoleDelete, ActionMemberBan, ActionMemberKick:
		return true
	}
	return false
}

// Event is the closed union the engine routes on. The three concrete types
// below are the only implementations.
type Event interface {
	GuildID() string
	isEvent()
}

// AdminAction is a privileged action attributed to an actor via the audit
// stream.
type AdminAction struct {
	Guild    string
	Actor    string
	Kind     ActionKind
	Target   string
	Observed time.Time
}

// Message is a single authored message in a guild channel.
type Message struct {
	Guild    string
	Author   string
	Channel  string
	IsAdmin  bool
	Observed time.Time
}

// MemberJoin is a member (or bot) joining a guild. AddedBy is the identity
// that invited a bot, when the adapter could attribute it.
type MemberJoin struct {
	Guild        string
	User         string
	IsBot        bool
	AddedBy      string
	AddedByOwner bool
	Observed     time.Time
}

func (e AdminAction) GuildID() string { return e.Guild }
func (e Message) GuildID() string     { return e.Guild }
func (e MemberJoin) GuildID() string  { return e.Guild }

func (AdminAction) isEvent() {}
func (Message) isEvent()     {}
func (MemberJoin) isEvent()  {}
