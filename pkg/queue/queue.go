package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrInvalidPosition is returned by position-taking operations when the
// position is outside the queue. The queue is left untouched.
var ErrInvalidPosition = errors.New("invalid queue position")

// GuildQueue is the authoritative ordered queue for one guild. Every
// mutating call is atomic relative to concurrent callers on the same
// guild; queues for different guilds never share a lock.
type GuildQueue struct {
	guildID string
	logger  *log.Logger

	mu      sync.RWMutex
	entries []QueueEntry
	current *QueueEntry
	offset  time.Duration
	stats   Stats
}

// NewGuildQueue creates an empty queue for a guild.
func NewGuildQueue(guildID string, logger *log.Logger) *GuildQueue {
	if logger == nil {
		logger = log.Default()
	}
	return &GuildQueue{
		guildID: guildID,
		logger:  logger.With("guild_id", guildID),
		entries: make([]QueueEntry, 0),
	}
}

// GuildID returns the guild this queue belongs to.
func (q *GuildQueue) GuildID() string {
	return q.guildID
}

// Enqueue appends an entry to the tail and returns its 1-based
// position. It never fails.
func (q *GuildQueue) Enqueue(descriptor AudioDescriptor, requester Requester) (QueueEntry, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := NewQueueEntry(descriptor, requester)
	q.entries = append(q.entries, entry)
	q.stats.Enqueued++

	q.logger.Info("queued track", "title", descriptor.Title, "position", len(q.entries), "requested_by", requester.DisplayName)
	return entry, len(q.entries)
}

// DequeueNext removes the head entry, promotes it to current and resets
// the playback offset. It returns nil when the queue is empty, in which
// case the previous current entry is considered finished and cleared.
func (q *GuildQueue) DequeueNext() *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dequeueLocked()
}

func (q *GuildQueue) dequeueLocked() *QueueEntry {
	q.offset = 0
	if len(q.entries) == 0 {
		q.current = nil
		return nil
	}

	entry := q.entries[0]
	q.entries = q.entries[1:]
	q.current = &entry
	q.stats.Dequeued++
	return &entry
}

// SkipCurrent discards the current entry without re-queuing it, then
// behaves like DequeueNext.
func (q *GuildQueue) SkipCurrent() *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil {
		q.logger.Info("skipped track", "title", q.current.Descriptor.Title)
		q.current = nil
	}
	return q.dequeueLocked()
}

// JumpTo promotes the entry at the 1-based position to current,
// discarding every entry before it. Entries after the target keep
// their relative order. An out-of-range position leaves the queue
// unchanged and returns ErrInvalidPosition.
func (q *GuildQueue) JumpTo(position int) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 1 || position > len(q.entries) {
		return nil, ErrInvalidPosition
	}

	discarded := position - 1
	entry := q.entries[discarded]
	q.entries = q.entries[position:]
	q.current = &entry
	q.offset = 0
	q.stats.Dequeued++
	q.stats.Removed += discarded

	q.logger.Info("jumped to track", "title", entry.Descriptor.Title, "discarded", discarded)
	return &entry, nil
}

// RemoveAt removes the non-current entry at the 1-based position
// without touching current playback.
func (q *GuildQueue) RemoveAt(position int) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 1 || position > len(q.entries) {
		return nil, ErrInvalidPosition
	}

	entry := q.entries[position-1]
	q.entries = append(q.entries[:position-1], q.entries[position:]...)
	q.stats.Removed++

	q.logger.Info("removed track", "title", entry.Descriptor.Title, "position", position)
	return &entry, nil
}

// Clear empties the queue and returns how many entries were removed.
// The current entry keeps playing.
func (q *GuildQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := len(q.entries)
	q.entries = make([]QueueEntry, 0)
	q.stats.Removed += removed

	q.logger.Info("cleared queue", "removed", removed)
	return removed
}

// UpdateOffset records playback progress into the current entry.
func (q *GuildQueue) UpdateOffset(offset time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.offset = offset
}

// View returns a read-only projection of the queue. The returned
// entries slice is a copy.
func (q *GuildQueue) View() View {
	q.mu.RLock()
	defer q.mu.RUnlock()

	entries := make([]QueueEntry, len(q.entries))
	copy(entries, q.entries)

	var total time.Duration
	for _, e := range entries {
		total += e.Descriptor.Duration
	}

	var current *QueueEntry
	if q.current != nil {
		c := *q.current
		current = &c
		total += c.Descriptor.Duration
	}

	return View{
		GuildID:       q.guildID,
		Current:       current,
		Entries:       entries,
		Offset:        q.offset,
		TotalDuration: total,
		Count:         len(entries),
	}
}

// Stats returns lifetime operation counts.
func (q *GuildQueue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats
}

// Restore replaces the queue's contents from a persisted snapshot.
// Meant to run once per guild during startup recovery, before any new
// mutation is accepted.
func (q *GuildQueue) Restore(current *QueueEntry, entries []QueueEntry, offset time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = make([]QueueEntry, len(entries))
	copy(q.entries, entries)
	q.offset = offset
	q.current = nil
	if current != nil {
		c := *current
		q.current = &c
	}

	q.logger.Info("restored queue", "entries", len(entries), "has_current", current != nil)
}
