package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Kitasan/internal/commands"
)

// NewMessageHandler builds the prefix command dispatcher.
func NewMessageHandler(prefix string) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore all messages created by the bot itself
		if m.Author.ID == s.State.User.ID {
			return
		}
		if m.GuildID == "" {
			return
		}

		if !strings.HasPrefix(m.Content, prefix) {
			return
		}

		args := strings.Fields(strings.TrimPrefix(m.Content, prefix))
		if len(args) == 0 {
			return
		}
		command := strings.ToLower(args[0])

		switch command {
		case "play", "p":
			commands.PlayCommand(s, m, args[1:])
		case "queue", "q":
			commands.QueueCommand(s, m, args[1:])
		case "nowplaying", "np":
			commands.NowPlayingCommand(s, m)
		case "skip":
			commands.SkipCommand(s, m)
		case "stop":
			commands.StopCommand(s, m)
		case "clear":
			commands.ClearCommand(s, m)
		case "leave":
			commands.LeaveCommand(s, m)
		case "help", "h":
			commands.ShowHelpCommand(s, m)
		}
	}
}
