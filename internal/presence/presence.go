// Package presence keeps the bot's Discord status in sync with what
// it is doing: idle stats by default, the current track while playing.
package presence

import (
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Manager updates the bot's presence.
type Manager struct {
	session *discordgo.Session
	logger  *log.Logger

	mu      sync.RWMutex
	showing string
}

// NewManager creates a presence manager for the session.
func NewManager(session *discordgo.Session, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		session: session,
		logger:  logger.With("component", "presence"),
	}
}

// UpdateDefault shows how many servers the bot is serving.
func (m *Manager) UpdateDefault() {
	guilds := m.session.State.Guilds
	if len(guilds) == 0 {
		return
	}

	status := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name: "music in " + strconv.Itoa(len(guilds)) + " servers",
				Type: discordgo.ActivityTypeListening,
			},
		},
	}
	if err := m.session.UpdateStatusComplex(status); err != nil {
		m.logger.Warn("failed to update presence", "error", err)
		return
	}

	m.mu.Lock()
	m.showing = "default"
	m.mu.Unlock()
}

// ShowTrack shows the currently playing track title.
func (m *Manager) ShowTrack(title string) {
	status := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  title,
				Type:  discordgo.ActivityTypeListening,
				State: title,
			},
		},
	}
	if err := m.session.UpdateStatusComplex(status); err != nil {
		m.logger.Warn("failed to update presence", "error", err)
		return
	}

	m.mu.Lock()
	m.showing = "track"
	m.mu.Unlock()
}

// ClearTrack returns to the default presence.
func (m *Manager) ClearTrack() {
	m.UpdateDefault()
}

// Showing reports which presence is active, "default" or "track".
func (m *Manager) Showing() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.showing
}

// StartPeriodicUpdates refreshes the default presence until the
// context-free stop channel closes. Track presence is left alone.
func (m *Manager) StartPeriodicUpdates(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if m.Showing() != "track" {
					m.UpdateDefault()
				}
			}
		}
	}()
}
