package commands

import (
	"github.com/bwmarrin/discordgo"
)

// StopCommand ends playback and disconnects. The queue itself is kept,
// snapshot included, so playback can pick the queue back up later.
func StopCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	ps := activeSession(m.GuildID)
	if ps == nil {
		s.ChannelMessageSend(m.ChannelID, "Nothing is playing.")
		return
	}

	ps.stop()
	s.ChannelMessageSend(m.ChannelID, "⏹️ Playback stopped.")
}
