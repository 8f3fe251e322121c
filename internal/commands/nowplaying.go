package commands

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// NowPlayingCommand shows the current track with playback position.
func NowPlayingCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	gq := deps.Queues.Lookup(m.GuildID)
	if gq == nil {
		sendNothingPlayingEmbed(s, m.ChannelID)
		return
	}

	view := gq.View()
	if view.Current == nil {
		sendNothingPlayingEmbed(s, m.ChannelID)
		return
	}
	entry := view.Current

	var statusEmoji, statusText string
	if ps := activeSession(m.GuildID); ps != nil && ps.isPlaying() {
		statusEmoji, statusText = "🟢", "Playing"
	} else {
		statusEmoji, statusText = "🔴", "Stopped"
	}

	position := formatDuration(view.Offset)
	if entry.Descriptor.Duration > 0 {
		position += " / " + formatDuration(entry.Descriptor.Duration)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: fmt.Sprintf("**%s**", entry.Descriptor.Title),
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Requested by",
				Value:  entry.Requester.DisplayName,
				Inline: true,
			},
			{
				Name:   "Position",
				Value:  position,
				Inline: true,
			},
			{
				Name:   "Status",
				Value:  fmt.Sprintf("%s %s", statusEmoji, statusText),
				Inline: true,
			},
			{
				Name:   "Source",
				Value:  fmt.Sprintf("[%s](%s)", entry.Descriptor.SourceTag, entry.Descriptor.CanonicalURL),
				Inline: false,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Kitasan",
		},
	}

	if entry.Descriptor.Uploader != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Uploader",
			Value:  entry.Descriptor.Uploader,
			Inline: true,
		})
	}
	if entry.Descriptor.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: entry.Descriptor.ThumbnailURL,
		}
	}

	s.ChannelMessageSendEmbed(m.ChannelID, embed)
}

func sendNothingPlayingEmbed(s *discordgo.Session, channelID string) {
	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: "Nothing is currently playing",
		Color:       0x808080,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Use " + deps.Prefix + "play to start playing music",
		},
	}
	s.ChannelMessageSendEmbed(channelID, embed)
}
