package bot

import (
	"context"

	"raidward/internal/adapter"
	"raidward/internal/engine"
	"raidward/internal/event"
	"raidward/internal/guildconf"
	"raidward/internal/schedule"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Bot owns the gateway session and translates its traffic into the engine's
// event union. All detection and response logic lives behind Observe.
type Bot struct {
	session *discordgo.Session
	engine  *engine.Engine
	conf    *guildconf.Store
	seen    *adapter.Registry
	clock   schedule.Clock
	logger  *zap.Logger
}

func New(session *discordgo.Session, eng *engine.Engine, conf *guildconf.Store, seen *adapter.Registry, clock schedule.Clock, logger *zap.Logger) *Bot {
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		session: session,
		engine:  eng,
		conf:    conf,
		seen:    seen,
		clock:   clock,
		logger:  logger,
	}

	session.AddHandler(b.onAuditLogEntry)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMemberAdd)
	return b
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		_ = b.session.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("session close timed out")
	}
}

// ApplyConfig is the administrative configuration surface: each admin
// command becomes one patch against the guild's stored config.
func (b *Bot) ApplyConfig(ctx context.Context, guildID string, patch guildconf.Patch) (guildconf.Config, error) {
	return b.conf.Apply(ctx, guildID, patch)
}

var auditActionKinds = map[discordgo.AuditLogAction]event.ActionKind{
	discordgo.AuditLogActionChannelDelete: event.ActionChannelDelete,
	discordgo.AuditLogActionRoleDelete:    event.ActionRoleDelete,
	discordgo.AuditLogActionMemberBanAdd:  event.ActionMemberBan,
	discordgo.AuditLogActionMemberKick:    event.ActionMemberKick,
}

func (b *Bot) onAuditLogEntry(s *discordgo.Session, entry *discordgo.GuildAuditLogEntryCreate) {
	if entry.ActionType == nil {
		return
	}
	kind, ok := auditActionKinds[*entry.ActionType]
	if !ok {
		return
	}
	// Never rate-check the engine's own punishments.
	if s.State.User != nil && entry.UserID == s.State.User.ID {
		return
	}
	// Entries can be redelivered across a session resume.
	if entry.ID != "" && b.seen.Seen(entry.ID, b.clock.Now()) {
		return
	}

	b.engine.Observe(event.AdminAction{
		Guild:    entry.GuildID,
		Actor:    entry.UserID,
		Kind:     kind,
		Target:   entry.TargetID,
		Observed: b.clock.Now(),
	})
}

func (b *Bot) onMessageCreate(s *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	b.engine.Observe(event.Message{
		Guild:    msg.GuildID,
		Author:   msg.Author.ID,
		Channel:  msg.ChannelID,
		IsAdmin:  b.isAdmin(s, msg.Author.ID, msg.ChannelID),
		Observed: b.clock.Now(),
	})
}

func (b *Bot) onMemberAdd(s *discordgo.Session, member *discordgo.GuildMemberAdd) {
	if member.Member == nil || member.Member.User == nil {
		return
	}
	guildID := member.Member.GuildID
	userID := member.Member.User.ID

	join := event.MemberJoin{
		Guild:    guildID,
		User:     userID,
		IsBot:    member.Member.User.Bot,
		Observed: b.clock.Now(),
	}
	if join.IsBot {
		join.AddedBy, join.AddedByOwner = b.botAddedBy(s, guildID, userID)
	}
	b.engine.Observe(join)
}

// botAddedBy attributes a bot join through the audit log, best-effort.
func (b *Bot) botAddedBy(s *discordgo.Session, guildID, botID string) (string, bool) {
	log, err := s.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionBotAdd), 5)
	if err != nil {
		b.logger.Debug("bot add attribution failed", zap.String("guild_id", guildID), zap.Error(err))
		return "", false
	}

	for _, entry := range log.AuditLogEntries {
		if entry.TargetID != botID {
			continue
		}
		owner := false
		if guild, err := s.State.Guild(guildID); err == nil {
			owner = guild.OwnerID == entry.UserID
		}
		return entry.UserID, owner
	}
	return "", false
}

func (b *Bot) isAdmin(s *discordgo.Session, userID, channelID string) bool {
	perms, err := s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}
