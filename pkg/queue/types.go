package queue

import (
	"time"

	"github.com/google/uuid"
)

// AudioDescriptor describes a playable track independently of any
// time-limited stream address. CanonicalURL is the stable, ID-bearing
// identifier a provider can turn back into a fresh stream URL at any
// time; the stream URL itself is never stored here.
type AudioDescriptor struct {
	Title        string
	Duration     time.Duration
	Uploader     string
	ThumbnailURL string
	FileFormat   string
	CanonicalURL string
	SourceTag    string
	// SegmentIndex selects one playable part of a multi-part upload
	// (1-based). Zero means the source has a single part.
	SegmentIndex int
}

// Requester is a by-value snapshot of the user who queued a track,
// captured at enqueue time so restoring a queue never depends on the
// member still being resolvable.
type Requester struct {
	ID          string
	DisplayName string
}

// QueueEntry is one queued track plus who asked for it and when.
type QueueEntry struct {
	ID         string
	Descriptor AudioDescriptor
	Requester  Requester
	AddedAt    time.Time
}

// NewQueueEntry builds an entry with a fresh ID and the current time.
func NewQueueEntry(descriptor AudioDescriptor, requester Requester) QueueEntry {
	return QueueEntry{
		ID:         uuid.New().String(),
		Descriptor: descriptor,
		Requester:  requester,
		AddedAt:    time.Now().UTC(),
	}
}

// View is a read-only projection of a guild queue for display,
// telemetry and persistence. Entries is a copy; mutating it does not
// touch the live queue.
type View struct {
	GuildID       string
	Current       *QueueEntry
	Entries       []QueueEntry
	Offset        time.Duration
	TotalDuration time.Duration
	Count         int
}

// Stats tracks lifetime operation counts for one guild queue.
type Stats struct {
	Enqueued int
	Dequeued int
	Removed  int
}
