package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

// PlayCommand queues a track by URL or search query and starts
// playback when the guild is idle.
func PlayCommand(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 1 {
		sendEmbedMessage(s, m.ChannelID, "❌ Usage Error",
			"Please provide a URL or search query.", 0xff0000)
		return
	}

	guildID := m.GuildID
	input := args[0]

	ctx, cancelCtx := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCtx()

	canonicalURL := input
	if !isURL(input) {
		query := strings.Join(args, " ")
		results, err := deps.YouTube.Search(ctx, query, 1)
		if err != nil || len(results) == 0 {
			deps.Logger.Warn("search returned nothing", "query", query, "error", err)
			sendEmbedMessage(s, m.ChannelID, "❌ Search Error",
				"No results found for your search query.", 0xff0000)
			return
		}
		canonicalURL = results[0]
	}

	prov, err := deps.Registry.Match(canonicalURL)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Unsupported Source",
			"No provider recognises that URL.", 0xff0000)
		return
	}

	descriptor, err := prov.Extract(ctx, canonicalURL)
	if err != nil {
		deps.Logger.Error("metadata extraction failed",
			"url", canonicalURL, "provider", prov.Name(), "error", err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error",
			"Failed to read track metadata. Please check the URL.", 0xff0000)
		return
	}

	gq := deps.Queues.Get(guildID)

	// One unplayed entry per requester; the queue itself doesn't care,
	// so the check lives here where the requester is known.
	if hasPendingEntry(gq.View(), m.Author.ID) {
		sendEmbedMessage(s, m.ChannelID, "⏳ Hold On",
			"You already have a track waiting in the queue. Wait for it to play before adding another.", 0xffa500)
		return
	}

	requester := queue.Requester{ID: m.Author.ID, DisplayName: m.Author.Username}
	_, position := gq.Enqueue(*descriptor, requester)
	persistQueue(guildID)

	description := fmt.Sprintf("✅ Added **%s** to queue (Position: %d)", descriptor.Title, position)
	sendEmbedMessage(s, m.ChannelID, "🎵 Track Added", description, 0x00ff00)

	if _, err := ensureSession(s, guildID, m.Author.ID, m.ChannelID); err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Voice Error", err.Error(), 0xff0000)
	}
}

// hasPendingEntry reports whether the requester already has a queued,
// not-yet-played track. The current track doesn't count.
func hasPendingEntry(view queue.View, requesterID string) bool {
	for _, entry := range view.Entries {
		if entry.Requester.ID == requesterID {
			return true
		}
	}
	return false
}

func isURL(input string) bool {
	u, err := url.Parse(input)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
