package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raidward/internal/adapter"
	"raidward/internal/audit"
	"raidward/internal/bot"
	"raidward/internal/config"
	"raidward/internal/engine"
	"raidward/internal/guildconf"
	"raidward/internal/metrics"
	"raidward/internal/reaper"
	"raidward/internal/response"
	"raidward/internal/schedule"
	"raidward/internal/storage"
	"raidward/internal/tracker"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ctx := context.Background()
	guildStore := guildconf.NewStore(store, cfg.GuildDefaults(), logger)
	if err := guildStore.Load(ctx); err != nil {
		logger.Fatal("guild config load failed", zap.Error(err))
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("session init failed", zap.Error(err))
	}

	clock := schedule.RealClock{}
	m := metrics.New()
	auditLogger := audit.NewLogger(store, logger)
	scheduler := schedule.New(clock, logger)

	responder := adapter.NewDiscord(session, logger)
	executor := response.NewExecutor(responder, scheduler, auditLogger, m, logger, clock)

	idle := cfg.IdleHorizon()
	activity := tracker.NewActivity(idle)
	spam := tracker.NewSpam(idle)
	joins := tracker.NewJoins(idle)
	seen := adapter.NewRegistry(idle)

	eng := engine.New(guildStore, activity, spam, joins, executor, auditLogger, m, logger, clock)
	botSvc := bot.New(session, eng, guildStore, seen, clock, logger)

	sweeper := reaper.New(cfg.ReaperInterval(), clock, m, logger,
		reaper.Target{Name: "activity", Store: activity},
		reaper.Target{Name: "spam", Store: spam},
		reaper.Target{Name: "joins", Store: joins},
		reaper.Target{Name: "engine", Store: eng},
		reaper.Target{Name: "gateway-dedupe", Store: seen},
		reaper.Target{Name: "audit-log", Store: reaper.SweepFunc(func(now time.Time) int {
			cutoff := now.AddDate(0, 0, -cfg.AuditRetentionDays)
			removed, err := store.CleanupAuditLogs(ctx, cutoff)
			if err != nil {
				logger.Warn("audit log cleanup failed", zap.Error(err))
				return 0
			}
			return int(removed)
		})},
	)

	scheduler.Start()
	reaperCtx, cancelReaper := context.WithCancel(ctx)
	go sweeper.Run(reaperCtx)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("gateway connect failed", zap.Error(err))
	}
	logger.Info("raidward started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	cancelReaper()
	scheduler.Stop()
	botSvc.Close(shutdownCtx)
}
