package adapter

import (
	"context"
	"time"
)

// Channel is the minimal channel view the executor needs to run a lockdown
// pass.
type Channel struct {
	ID    string
	Voice bool
}

// Responder is the platform surface the engine acts through. The discord
// implementation lives in this package; tests substitute fakes.
type Responder interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error
	StripRoles(ctx context.Context, guildID, userID string) error

	// SetChannelOverwrite applies (deny=true) or clears (deny=false) a
	// send-messages/connect deny overwrite for roleID on the channel.
	SetChannelOverwrite(ctx context.Context, guildID, channelID, roleID string, deny bool) error
	SetVerificationLevel(ctx context.Context, guildID string, level VerificationLevel) error

	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	Notify(ctx context.Context, channelID, message string) error
}

type VerificationLevel int

const (
	VerificationMedium VerificationLevel = 2
	VerificationHigh   VerificationLevel = 3
)

// EveryoneRole returns the role carrying a guild's baseline permissions.
// On this platform it shares the guild's id.
func EveryoneRole(guildID string) string { return guildID }
