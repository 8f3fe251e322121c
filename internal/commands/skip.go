package commands

import (
	"github.com/bwmarrin/discordgo"
)

// SkipCommand stops the current track; the playback loop moves on to
// the next queued entry by itself.
func SkipCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	ps := activeSession(m.GuildID)
	if ps == nil || !ps.isPlaying() {
		s.ChannelMessageSend(m.ChannelID, "Nothing is playing.")
		return
	}

	ps.skipTrack()
	s.ChannelMessageSend(m.ChannelID, "⏭️ Skipped to the next track.")
}
