package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Kitasan/internal/commands"
	"github.com/latoulicious/Kitasan/internal/config"
	"github.com/latoulicious/Kitasan/internal/handlers"
	"github.com/latoulicious/Kitasan/internal/presence"
	"github.com/latoulicious/Kitasan/pkg/logging"
	"github.com/latoulicious/Kitasan/pkg/provider"
	"github.com/latoulicious/Kitasan/pkg/queue"
	"github.com/latoulicious/Kitasan/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Fatal("failed to load config", "error", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create database directory", "path", dir, "error", err)
		}
	}

	snapshots, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open snapshot store", "path", cfg.DatabasePath, "error", err)
	}
	defer snapshots.Close()

	// Provider order matters: the direct-stream provider matches any
	// audio URL, so it registers last.
	registry := provider.NewRegistry(logger)
	youtube := provider.NewYouTubeProvider(logger)
	registry.Register(youtube)
	registry.Register(provider.NewBilibiliProvider(logger))
	registry.Register(provider.NewStreamProvider(logger))

	queues := queue.NewManager(logger)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("failed to create Discord session", "error", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	presenceManager := presence.NewManager(dg, logger)

	commands.Configure(&commands.Deps{
		Queues:   queues,
		Registry: registry,
		Store:    snapshots,
		YouTube:  youtube,
		Presence: presenceManager,
		Logger:   logger,
		Prefix:   cfg.CommandPrefix,
		RefreshPolicy: provider.RefreshPolicy{
			MaxAttempts: cfg.RefreshAttempts,
			Backoff:     cfg.RefreshBackoff,
		},
	})

	// Queues come back before the gateway opens, so the first command
	// a guild sends already sees its restored state.
	commands.RestoreAll()

	dg.AddHandler(handlers.NewMessageHandler(cfg.CommandPrefix))
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("bot is ready",
			"username", r.User.Username,
			"guilds", len(r.Guilds))
		presenceManager.UpdateDefault()
	})

	if err := dg.Open(); err != nil {
		logger.Fatal("failed to open Discord session", "error", err)
	}

	retention := store.NewRetentionJobWithSchedule(snapshots, cfg.SnapshotRetention, cfg.RetentionCron, logger)

	stopPresence := make(chan struct{})
	presenceManager.StartPeriodicUpdates(stopPresence)

	logger.Info("bot is running, press CTRL-C to exit")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	logger.Info("shutting down")
	close(stopPresence)
	retention.Stop()
	dg.Close()
}
