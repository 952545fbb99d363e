package audit

import (
	"context"
	"time"

	"raidward/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Logger records security decisions durably and mirrors them to the
// structured log. An optional notifier receives each entry for external
// delivery.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

// Log writes one audit row. Storage failures must not take down the
// detection path, so they are logged and swallowed here.
func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) string {
	entry := storage.AuditLog{
		IncidentID: uuid.NewString(),
		GuildID:    guildID,
		UserID:     userID,
		Level:      level,
		Event:      event,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit log write failed", zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("incident_id", entry.IncidentID),
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details))
	return entry.IncidentID
}
