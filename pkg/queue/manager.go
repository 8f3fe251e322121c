package queue

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Manager holds one GuildQueue per guild, created lazily on first
// access. The manager's lock only guards the map; each queue owns its
// own lock, so operations on different guilds proceed in parallel.
type Manager struct {
	logger *log.Logger

	mu     sync.RWMutex
	queues map[string]*GuildQueue
}

// NewManager creates an empty manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		logger: logger,
		queues: make(map[string]*GuildQueue),
	}
}

// Get returns the queue for a guild, creating it on first reference.
func (m *Manager) Get(guildID string) *GuildQueue {
	m.mu.RLock()
	q, ok := m.queues[guildID]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[guildID]; ok {
		return q
	}
	q = NewGuildQueue(guildID, m.logger)
	m.queues[guildID] = q
	return q
}

// Lookup returns the queue for a guild without creating one.
func (m *Manager) Lookup(guildID string) *GuildQueue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queues[guildID]
}

// Guilds returns the IDs of every guild with a live queue.
func (m *Manager) Guilds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.queues))
	for id := range m.queues {
		ids = append(ids, id)
	}
	return ids
}
