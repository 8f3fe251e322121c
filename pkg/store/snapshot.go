package store

import (
	"time"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

// SchemaVersion is written into every snapshot so older on-disk data
// stays readable as the format evolves.
const SchemaVersion = 1

// Snapshot is the durable, versioned projection of one guild's queue.
// It is the sole recovery source across restarts; in-memory state stays
// authoritative while the process lives.
type Snapshot struct {
	GuildID               string        `json:"guild_id"`
	SchemaVersion         int           `json:"schema_version"`
	LastUpdated           time.Time     `json:"last_updated"`
	CurrentEntry          *EntryRecord  `json:"current_entry"`
	Entries               []EntryRecord `json:"entries"`
	PlaybackOffsetSeconds float64       `json:"playback_offset_seconds"`
}

// EntryRecord is the wire form of one queue entry. It carries the
// canonical URL, never a resolved stream address.
type EntryRecord struct {
	EntryID         string    `json:"entry_id"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_seconds"`
	CanonicalURL    string    `json:"canonical_url"`
	Uploader        string    `json:"uploader"`
	RequesterID     string    `json:"requester_id"`
	RequesterName   string    `json:"requester_name"`
	AddedAt         time.Time `json:"added_at"`
	SourceTag       string    `json:"source_tag"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	FileFormat      string    `json:"file_format,omitempty"`
	SegmentIndex    int       `json:"segment_index,omitempty"`
}

// SnapshotFromView projects a queue view into its durable form.
func SnapshotFromView(view queue.View) *Snapshot {
	snapshot := &Snapshot{
		GuildID:               view.GuildID,
		SchemaVersion:         SchemaVersion,
		LastUpdated:           time.Now().UTC(),
		Entries:               make([]EntryRecord, 0, len(view.Entries)),
		PlaybackOffsetSeconds: view.Offset.Seconds(),
	}

	if view.Current != nil {
		record := recordFromEntry(*view.Current)
		snapshot.CurrentEntry = &record
	}
	for _, entry := range view.Entries {
		snapshot.Entries = append(snapshot.Entries, recordFromEntry(entry))
	}
	return snapshot
}

func recordFromEntry(entry queue.QueueEntry) EntryRecord {
	return EntryRecord{
		EntryID:         entry.ID,
		Title:           entry.Descriptor.Title,
		DurationSeconds: entry.Descriptor.Duration.Seconds(),
		CanonicalURL:    entry.Descriptor.CanonicalURL,
		Uploader:        entry.Descriptor.Uploader,
		RequesterID:     entry.Requester.ID,
		RequesterName:   entry.Requester.DisplayName,
		AddedAt:         entry.AddedAt,
		SourceTag:       entry.Descriptor.SourceTag,
		ThumbnailURL:    entry.Descriptor.ThumbnailURL,
		FileFormat:      entry.Descriptor.FileFormat,
		SegmentIndex:    entry.Descriptor.SegmentIndex,
	}
}

// toEntry rebuilds a live queue entry. A requester whose identity can
// no longer be resolved gets a placeholder name rather than losing the
// entry.
func (r EntryRecord) toEntry() queue.QueueEntry {
	name := r.RequesterName
	if name == "" {
		name = "Unknown"
	}
	return queue.QueueEntry{
		ID: r.EntryID,
		Descriptor: queue.AudioDescriptor{
			Title:        r.Title,
			Duration:     time.Duration(r.DurationSeconds * float64(time.Second)),
			Uploader:     r.Uploader,
			ThumbnailURL: r.ThumbnailURL,
			FileFormat:   r.FileFormat,
			CanonicalURL: r.CanonicalURL,
			SourceTag:    r.SourceTag,
			SegmentIndex: r.SegmentIndex,
		},
		Requester: queue.Requester{ID: r.RequesterID, DisplayName: name},
		AddedAt:   r.AddedAt,
	}
}

// Offset returns the playback offset as a duration.
func (s *Snapshot) Offset() time.Duration {
	return time.Duration(s.PlaybackOffsetSeconds * float64(time.Second))
}
