package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

// QueueCommand handles the queue subcommands: list, remove, jump and
// clear. Bare `!queue` lists.
func QueueCommand(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 1 {
		showQueue(s, m)
		return
	}

	subcommand := strings.ToLower(args[0])
	switch subcommand {
	case "list":
		showQueue(s, m)
	case "remove":
		if len(args) < 2 {
			s.ChannelMessageSend(m.ChannelID, "Usage: `"+deps.Prefix+"queue remove <position>`")
			return
		}
		removeFromQueue(s, m, args[1])
	case "jump":
		if len(args) < 2 {
			s.ChannelMessageSend(m.ChannelID, "Usage: `"+deps.Prefix+"queue jump <position>`")
			return
		}
		jumpInQueue(s, m, args[1])
	case "clear":
		ClearCommand(s, m)
	default:
		s.ChannelMessageSend(m.ChannelID, "Usage: `"+deps.Prefix+"queue [list|remove|jump|clear] [args...]`")
	}
}

func showQueue(s *discordgo.Session, m *discordgo.MessageCreate) {
	gq := deps.Queues.Lookup(m.GuildID)
	if gq == nil {
		s.ChannelMessageSend(m.ChannelID, "📭 Queue is empty.")
		return
	}

	view := gq.View()
	if view.Current == nil && len(view.Entries) == 0 {
		s.ChannelMessageSend(m.ChannelID, "📭 Queue is empty.")
		return
	}

	var response strings.Builder
	response.WriteString("🎵 **Music Queue**\n\n")

	if view.Current != nil {
		response.WriteString("🎶 **Now Playing:** " + entryLine(*view.Current) + "\n\n")
	}

	if len(view.Entries) > 0 {
		response.WriteString("📋 **Up Next:**\n")
		for i, entry := range view.Entries {
			response.WriteString(fmt.Sprintf("%d. %s\n", i+1, entryLine(entry)))
		}
		response.WriteString(fmt.Sprintf("\nTotal: %d tracks, %s",
			view.Count, formatDuration(view.TotalDuration)))
	} else {
		response.WriteString("📋 No tracks in queue.")
	}

	s.ChannelMessageSend(m.ChannelID, response.String())
}

func removeFromQueue(s *discordgo.Session, m *discordgo.MessageCreate, arg string) {
	position, err := strconv.Atoi(arg)
	if err != nil {
		s.ChannelMessageSend(m.ChannelID, "❌ Invalid position. Use `"+deps.Prefix+"queue list` to see positions.")
		return
	}

	gq := deps.Queues.Get(m.GuildID)
	removed, err := gq.RemoveAt(position)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidPosition) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("❌ No track at position %d.", position))
		} else {
			s.ChannelMessageSend(m.ChannelID, "❌ "+err.Error())
		}
		return
	}
	persistQueue(m.GuildID)

	sendEmbedMessage(s, m.ChannelID, "🗑️ Track Removed",
		"Removed "+entryLine(*removed), 0x00ff00)
}

// jumpInQueue promotes the chosen entry to play next, discarding
// everything queued before it.
func jumpInQueue(s *discordgo.Session, m *discordgo.MessageCreate, arg string) {
	position, err := strconv.Atoi(arg)
	if err != nil {
		s.ChannelMessageSend(m.ChannelID, "❌ Invalid position. Use `"+deps.Prefix+"queue list` to see positions.")
		return
	}

	gq := deps.Queues.Get(m.GuildID)
	target, err := gq.JumpTo(position)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidPosition) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("❌ No track at position %d.", position))
		} else {
			s.ChannelMessageSend(m.ChannelID, "❌ "+err.Error())
		}
		return
	}
	persistQueue(m.GuildID)

	sendEmbedMessage(s, m.ChannelID, "⏭️ Jumped",
		"Jumping to "+entryLine(*target), 0x00ff00)

	if ps := activeSession(m.GuildID); ps != nil {
		ps.restartCurrent()
	} else if _, err := ensureSession(s, m.GuildID, m.Author.ID, m.ChannelID); err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Voice Error", err.Error(), 0xff0000)
	}
}
