package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Kitasan/pkg/provider"
	"github.com/latoulicious/Kitasan/pkg/queue"
)

type stubProvider struct {
	name   string
	prefix string
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) Supports(url string) bool  { return strings.Contains(url, s.prefix) }
func (s *stubProvider) Extract(_ context.Context, url string) (*queue.AudioDescriptor, error) {
	return &queue.AudioDescriptor{CanonicalURL: url, SourceTag: s.name}, nil
}
func (s *stubProvider) ResolveLocator(_ context.Context, canonicalURL string) (*provider.Locator, error) {
	return &provider.Locator{URL: canonicalURL}, nil
}
func (s *stubProvider) Download(_ context.Context, _ *provider.Locator, _ provider.ProgressFunc) (*provider.Artifact, error) {
	return &provider.Artifact{}, nil
}

func testRegistry() *provider.Registry {
	r := provider.NewRegistry(nil)
	r.Register(&stubProvider{name: "youtube", prefix: "youtube.com"})
	return r
}

// Full round-trip: enqueue A, B, C; dequeue once so A is current; save;
// rebuild a fresh queue from the stored snapshot. The restored view
// must match the pre-save state.
func TestPersistenceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	registry := testRegistry()

	q := queue.NewGuildQueue("guild-1", nil)
	for _, title := range []string{"A", "B", "C"} {
		q.Enqueue(queue.AudioDescriptor{
			Title:        title,
			Duration:     3 * time.Minute,
			CanonicalURL: "https://www.youtube.com/watch?v=" + title,
			SourceTag:    "youtube",
		}, queue.Requester{ID: "1", DisplayName: "alice"})
	}
	require.NotNil(t, q.DequeueNext())
	q.UpdateOffset(30 * time.Second)

	before := q.View()
	require.NoError(t, s.Save("guild-1", SnapshotFromView(before)))

	loaded, err := s.Load("guild-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	fresh := queue.NewGuildQueue("guild-1", nil)
	report := RestoreGuild(fresh, registry, loaded, nil)
	assert.Equal(t, 3, report.Restored)
	assert.Empty(t, report.Invalid)

	after := fresh.View()
	require.NotNil(t, after.Current)
	assert.Equal(t, "A", after.Current.Descriptor.Title)
	assert.Equal(t, before.Current.ID, after.Current.ID)
	require.Equal(t, 2, after.Count)
	assert.Equal(t, "B", after.Entries[0].Descriptor.Title)
	assert.Equal(t, "C", after.Entries[1].Descriptor.Title)
	assert.Equal(t, 30*time.Second, after.Offset)
}

// Entries whose canonical URL no longer matches any provider are
// excluded from the restore and reported, while the rest come back.
func TestRestorePartialValidation(t *testing.T) {
	registry := testRegistry()

	snapshot := &Snapshot{
		GuildID:       "guild-1",
		SchemaVersion: SchemaVersion,
		Entries: []EntryRecord{
			{EntryID: "1", Title: "good", CanonicalURL: "https://www.youtube.com/watch?v=aaa"},
			{EntryID: "2", Title: "gone", CanonicalURL: "https://dead-source.example/track/9"},
			{EntryID: "3", Title: "also good", CanonicalURL: "https://www.youtube.com/watch?v=bbb"},
		},
	}

	q := queue.NewGuildQueue("guild-1", nil)
	report := RestoreGuild(q, registry, snapshot, nil)

	assert.Equal(t, 2, report.Restored)
	require.Len(t, report.Invalid, 1)
	assert.Equal(t, "gone", report.Invalid[0].Title)

	view := q.View()
	require.Equal(t, 2, view.Count)
	assert.Equal(t, "good", view.Entries[0].Descriptor.Title)
	assert.Equal(t, "also good", view.Entries[1].Descriptor.Title)
}

func TestRestoreInvalidCurrentEntry(t *testing.T) {
	registry := testRegistry()

	snapshot := &Snapshot{
		GuildID:       "guild-1",
		SchemaVersion: SchemaVersion,
		CurrentEntry: &EntryRecord{
			EntryID: "1", Title: "gone", CanonicalURL: "https://dead-source.example/track/9",
		},
		Entries: []EntryRecord{
			{EntryID: "2", Title: "good", CanonicalURL: "https://www.youtube.com/watch?v=aaa"},
		},
		PlaybackOffsetSeconds: 42,
	}

	q := queue.NewGuildQueue("guild-1", nil)
	report := RestoreGuild(q, registry, snapshot, nil)

	assert.Equal(t, 1, report.Restored)
	require.Len(t, report.Invalid, 1)

	view := q.View()
	assert.Nil(t, view.Current)
	// No current entry, so the stored offset is meaningless.
	assert.Equal(t, time.Duration(0), view.Offset)
}

// A requester who can no longer be resolved gets a placeholder name
// instead of costing the entry.
func TestRestorePlaceholderRequester(t *testing.T) {
	registry := testRegistry()

	snapshot := &Snapshot{
		GuildID:       "guild-1",
		SchemaVersion: SchemaVersion,
		Entries: []EntryRecord{
			{EntryID: "1", Title: "orphan", CanonicalURL: "https://www.youtube.com/watch?v=aaa", RequesterID: "42"},
		},
	}

	q := queue.NewGuildQueue("guild-1", nil)
	report := RestoreGuild(q, registry, snapshot, nil)
	assert.Equal(t, 1, report.Restored)

	view := q.View()
	require.Equal(t, 1, view.Count)
	assert.Equal(t, "Unknown", view.Entries[0].Requester.DisplayName)
	assert.Equal(t, "42", view.Entries[0].Requester.ID)
}
