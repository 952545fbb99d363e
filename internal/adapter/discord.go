package adapter

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// lockdownDeny is the permission set removed from @everyone during a
// lockdown pass.
const lockdownDeny = discordgo.PermissionSendMessages | discordgo.PermissionVoiceConnect

// Discord implements Responder against a live discordgo session.
type Discord struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscord(session *discordgo.Session, logger *zap.Logger) *Discord {
	return &Discord{session: session, logger: logger}
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (d *Discord) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	until := time.Now().Add(duration)
	return d.session.GuildMemberTimeout(guildID, userID, &until)
}

func (d *Discord) StripRoles(ctx context.Context, guildID, userID string) error {
	empty := []string{}
	_, err := d.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &empty})
	return err
}

func (d *Discord) SetChannelOverwrite(ctx context.Context, guildID, channelID, roleID string, deny bool) error {
	if deny {
		return d.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, lockdownDeny)
	}
	return d.session.ChannelPermissionDelete(channelID, roleID)
}

func (d *Discord) SetVerificationLevel(ctx context.Context, guildID string, level VerificationLevel) error {
	verification := discordgo.VerificationLevel(level)
	_, err := d.session.GuildEdit(guildID, &discordgo.GuildParams{VerificationLevel: &verification})
	return err
}

func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	raw, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, len(raw))
	for _, channel := range raw {
		switch channel.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildVoice:
			channels = append(channels, Channel{ID: channel.ID, Voice: channel.Type == discordgo.ChannelTypeGuildVoice})
		}
	}
	return channels, nil
}

func (d *Discord) Notify(ctx context.Context, channelID, message string) error {
	_, err := d.session.ChannelMessageSend(channelID, message)
	return err
}
