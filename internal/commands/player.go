package commands

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Kitasan/pkg/audio"
	"github.com/latoulicious/Kitasan/pkg/provider"
	"github.com/latoulicious/Kitasan/pkg/queue"
)

var (
	sessions     = make(map[string]*playerSession)
	sessionMutex sync.RWMutex

	joinVoice = audio.JoinUserChannel
)

// playerSession drains one guild's queue into a voice connection. Each
// track is resolved to a fresh stream URL immediately before playback;
// a URL whose signature ages out mid-stream is re-resolved and the
// track resumed from the last reported offset.
type playerSession struct {
	guildID   string
	channelID string
	session   *discordgo.Session
	voice     *discordgo.VoiceConnection
	cancel    context.CancelFunc

	mu          sync.Mutex
	pipeline    *audio.Pipeline
	playCurrent bool
	resumeAt    time.Duration
}

func activeSession(guildID string) *playerSession {
	sessionMutex.RLock()
	defer sessionMutex.RUnlock()
	return sessions[guildID]
}

// ensureSession returns the running session for the guild, or starts
// one in the caller's voice channel. A restored queue with a current
// track resumes it from the persisted offset before touching the rest
// of the queue.
//
// The session map lock is only held to reserve the guild's slot; the
// voice join, which can retry and wait for readiness, runs outside it
// so one guild's connection attempt never stalls the others.
func ensureSession(s *discordgo.Session, guildID, userID, textChannelID string) (*playerSession, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ps := &playerSession{
		guildID:   guildID,
		channelID: textChannelID,
		session:   s,
		cancel:    cancel,
	}

	sessionMutex.Lock()
	if existing, ok := sessions[guildID]; ok {
		sessionMutex.Unlock()
		cancel()
		return existing, nil
	}
	sessions[guildID] = ps
	sessionMutex.Unlock()

	vc, err := joinVoice(s, guildID, userID, deps.Logger)
	if err != nil {
		cancel()
		sessionMutex.Lock()
		delete(sessions, guildID)
		sessionMutex.Unlock()
		return nil, err
	}
	ps.voice = vc

	if view := deps.Queues.Get(guildID).View(); view.Current != nil {
		ps.playCurrent = true
		ps.resumeAt = view.Offset
	}

	go ps.run(ctx)
	return ps, nil
}

func (ps *playerSession) run(ctx context.Context) {
	defer func() {
		sessionMutex.Lock()
		delete(sessions, ps.guildID)
		sessionMutex.Unlock()
		audio.LeaveGuild(ps.session, ps.guildID)
		if deps.Presence != nil {
			deps.Presence.ClearTrack()
		}
	}()

	gq := deps.Queues.Get(ps.guildID)

	for ctx.Err() == nil {
		entry, startAt := ps.nextEntry(gq)
		if entry == nil {
			break
		}
		persistQueue(ps.guildID)

		ps.announceNowPlaying(*entry, startAt)
		if err := ps.playEntry(ctx, gq, *entry, startAt); err != nil && ctx.Err() == nil {
			deps.Logger.Error("playback failed",
				"guild_id", ps.guildID,
				"title", entry.Descriptor.Title,
				"error", err)
			sendEmbedMessage(ps.session, ps.channelID, "❌ Playback Error",
				"Failed to play **"+entry.Descriptor.Title+"**, moving on.", 0xff0000)
		}
	}

	persistQueue(ps.guildID)
}

// nextEntry picks what to play: the promoted/restored current track
// when flagged, otherwise the next queued entry.
func (ps *playerSession) nextEntry(gq *queue.GuildQueue) (*queue.QueueEntry, time.Duration) {
	ps.mu.Lock()
	useCurrent := ps.playCurrent
	startAt := ps.resumeAt
	ps.playCurrent = false
	ps.resumeAt = 0
	ps.mu.Unlock()

	if useCurrent {
		if view := gq.View(); view.Current != nil {
			return view.Current, startAt
		}
	}
	return gq.DequeueNext(), 0
}

func (ps *playerSession) playEntry(ctx context.Context, gq *queue.GuildQueue, entry queue.QueueEntry, startAt time.Duration) error {
	prov, err := deps.Registry.Match(entry.Descriptor.CanonicalURL)
	if err != nil {
		return err
	}

	pipeline := audio.NewPipeline(ps.voice, deps.Logger)
	pipeline.OnProgress(func(offset time.Duration) {
		gq.UpdateOffset(offset)
		persistQueue(ps.guildID)
	})

	ps.mu.Lock()
	ps.pipeline = pipeline
	ps.mu.Unlock()
	defer func() {
		ps.mu.Lock()
		ps.pipeline = nil
		ps.mu.Unlock()
	}()

	return provider.ResolveWithRefresh(ctx, prov, entry.Descriptor.CanonicalURL, deps.RefreshPolicy, func(locator *provider.Locator) error {
		// On a refresh after mid-stream expiry, pick up where the
		// last progress report left off instead of the original seek.
		resume := startAt
		if offset := gq.View().Offset; offset > resume {
			resume = offset
		}
		return pipeline.Play(ctx, locator.URL, resume)
	})
}

func (ps *playerSession) announceNowPlaying(entry queue.QueueEntry, startAt time.Duration) {
	if deps.Presence != nil {
		deps.Presence.ShowTrack(entry.Descriptor.Title)
	}
	description := "🎶 **" + entry.Descriptor.Title + "**"
	if startAt > 0 {
		description += " (resuming from " + formatDuration(startAt) + ")"
	}
	sendEmbedMessage(ps.session, ps.channelID, "🎵 Now Playing", description, 0x00ff00)
}

// skipTrack stops the active pipeline so the loop advances.
func (ps *playerSession) skipTrack() {
	ps.mu.Lock()
	pipeline := ps.pipeline
	ps.mu.Unlock()
	if pipeline != nil {
		pipeline.Stop()
	}
}

// restartCurrent makes the loop replay the queue's current track next,
// used after a jump promotes a new current entry.
func (ps *playerSession) restartCurrent() {
	ps.mu.Lock()
	ps.playCurrent = true
	ps.resumeAt = 0
	pipeline := ps.pipeline
	ps.mu.Unlock()
	if pipeline != nil {
		pipeline.Stop()
	}
}

// stop tears the whole session down: current track, loop and voice
// connection.
func (ps *playerSession) stop() {
	ps.cancel()
	ps.skipTrack()
}

func (ps *playerSession) isPlaying() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.pipeline != nil && ps.pipeline.IsPlaying()
}
