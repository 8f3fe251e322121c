package audio

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// ErrNotInVoice is returned when the requesting user isn't connected to
// any voice channel in the guild.
var ErrNotInVoice = errors.New("user is not in a voice channel")

// JoinUserChannel joins the voice channel the given user is currently
// in, retrying transient gateway failures, and waits until the
// connection is ready.
func JoinUserChannel(s *discordgo.Session, guildID, userID string, logger *log.Logger) (*discordgo.VoiceConnection, error) {
	if logger == nil {
		logger = log.Default()
	}

	guild, err := s.State.Guild(guildID)
	if err != nil {
		return nil, errors.Wrap(err, "guild not in state cache")
	}

	var channelID string
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			channelID = vs.ChannelID
			break
		}
	}
	if channelID == "" {
		return nil, ErrNotInVoice
	}

	const maxRetries = 3
	var vc *discordgo.VoiceConnection
	for attempt := 1; attempt <= maxRetries; attempt++ {
		vc, err = s.ChannelVoiceJoin(guildID, channelID, false, true)
		if err == nil {
			break
		}
		logger.Warn("voice join failed",
			"guild_id", guildID,
			"attempt", attempt,
			"error", err)
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "join voice channel after %d attempts", maxRetries)
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			vc.Disconnect()
			return nil, errors.New("voice connection timed out")
		case <-ticker.C:
			if vc.Ready {
				return vc, nil
			}
		}
	}
}

// LeaveGuild disconnects any voice connection held for the guild.
func LeaveGuild(s *discordgo.Session, guildID string) {
	for _, vc := range s.VoiceConnections {
		if vc.GuildID == guildID {
			vc.Disconnect()
			return
		}
	}
}
