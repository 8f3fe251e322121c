// Package commands implements the message command surface: queueing
// tracks, driving playback, and persisting queue snapshots so a
// restart never loses a guild's queue.
package commands

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/latoulicious/Kitasan/internal/presence"
	"github.com/latoulicious/Kitasan/pkg/provider"
	"github.com/latoulicious/Kitasan/pkg/queue"
	"github.com/latoulicious/Kitasan/pkg/store"
)

// Deps wires the command layer to the rest of the bot. Configure must
// run once at startup before any handler fires.
type Deps struct {
	Queues        *queue.Manager
	Registry      *provider.Registry
	Store         *store.Store
	YouTube       *provider.YouTubeProvider
	Presence      *presence.Manager
	Logger        *log.Logger
	Prefix        string
	RefreshPolicy provider.RefreshPolicy
}

var deps *Deps

// Configure installs the shared dependencies for the command handlers.
func Configure(d *Deps) {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.RefreshPolicy.MaxAttempts == 0 {
		d.RefreshPolicy = provider.DefaultRefreshPolicy()
	}
	deps = d
}

// RestoreAll replays every persisted queue snapshot into the manager.
// Entries that no longer validate against the registry are dropped
// per guild; everything else survives into the in-memory queues.
func RestoreAll() {
	if deps.Store == nil {
		return
	}

	snapshots, err := deps.Store.LoadAll()
	if err != nil {
		deps.Logger.Error("failed to load queue snapshots", "error", err)
		return
	}

	for _, snapshot := range snapshots {
		gq := deps.Queues.Get(snapshot.GuildID)
		report := store.RestoreGuild(gq, deps.Registry, snapshot, deps.Logger)
		deps.Logger.Info("restored guild queue",
			"guild_id", report.GuildID,
			"restored", report.Restored,
			"invalid", len(report.Invalid))
	}
}

// persistQueue snapshots the guild's queue and writes it through to
// the store in the background. Every queue mutation calls this.
func persistQueue(guildID string) {
	if deps.Store == nil {
		return
	}
	view := deps.Queues.Get(guildID).View()
	deps.Store.SaveAsync(guildID, store.SnapshotFromView(view))
}

func sendEmbedMessage(s *discordgo.Session, channelID, title, description string, color int) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Kitasan",
		},
	}
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		deps.Logger.Warn("failed to send embed", "channel_id", channelID, "error", err)
	}
}

// formatDuration renders a duration the way players expect: m:ss, or
// h:mm:ss past the hour mark.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func entryLine(entry queue.QueueEntry) string {
	return fmt.Sprintf("**%s** `%s` (requested by %s)",
		entry.Descriptor.Title,
		formatDuration(entry.Descriptor.Duration),
		entry.Requester.DisplayName)
}
