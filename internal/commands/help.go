package commands

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ShowHelpCommand displays all available commands with their
// descriptions.
func ShowHelpCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := deps.Prefix

	embed := &discordgo.MessageEmbed{
		Title:       "Kitasan",
		Description: "Here are all the available commands for the bot:",
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Kitasan | Queues survive restarts",
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Music Commands",
				Value: strings.Join([]string{
					"• `" + p + "play <url>` / `" + p + "p <url>` - Play a track by URL (YouTube, Bilibili, direct audio links)",
					"• `" + p + "play <keywords>` - Search YouTube and play the first result",
					"• `" + p + "nowplaying` / `" + p + "np` - Show the currently playing track",
					"• `" + p + "queue` / `" + p + "q` - List the current queue",
					"• `" + p + "queue remove <position>` - Remove a queued track",
					"• `" + p + "queue jump <position>` - Jump to a queued track, dropping everything before it",
					"• `" + p + "clear` - Clear the queue (current track keeps playing)",
					"• `" + p + "skip` - Skip the currently playing track",
					"• `" + p + "stop` - Stop playback and disconnect",
					"• `" + p + "leave` - Disconnect from the voice channel",
				}, "\n"),
				Inline: false,
			},
			{
				Name:   "Information Commands",
				Value:  "• `" + p + "help` / `" + p + "h` - Show this help message",
				Inline: false,
			},
			{
				Name: "💡 Tips",
				Value: strings.Join([]string{
					"• Join a voice channel **before** using music commands",
					"• Bilibili multi-part videos: append `?p=N` to pick a part",
					"• Queues are saved and restored across bot restarts",
				}, "\n"),
				Inline: false,
			},
		},
	}

	s.ChannelMessageSendEmbed(m.ChannelID, embed)
}
