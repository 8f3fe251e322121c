package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Kitasan/pkg/audio"
)

// LeaveCommand disconnects the bot from the guild's voice channel,
// stopping any active playback first.
func LeaveCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	if ps := activeSession(m.GuildID); ps != nil {
		ps.stop()
	} else {
		audio.LeaveGuild(s, m.GuildID)
	}
	s.ChannelMessageSend(m.ChannelID, "👋 Left the voice channel.")
}
