package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ClearCommand discards every queued entry. The current track keeps
// playing; only the waiting list is emptied.
func ClearCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	gq := deps.Queues.Lookup(m.GuildID)
	if gq == nil {
		sendEmbedMessage(s, m.ChannelID, "📭 Queue Already Empty",
			"There is nothing queued.", 0x808080)
		return
	}

	removed := gq.Clear()
	if removed == 0 {
		sendEmbedMessage(s, m.ChannelID, "📭 Queue Already Empty",
			"There is nothing queued.", 0x808080)
		return
	}
	persistQueue(m.GuildID)

	sendEmbedMessage(s, m.ChannelID, "🗑️ Queue Cleared",
		fmt.Sprintf("Removed %d queued tracks. The current track keeps playing.", removed), 0x00ff00)
}
