package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	s, err := Open("", nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")

	first, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Save("g1", &Snapshot{GuildID: "g1", SchemaVersion: SchemaVersion}))
	require.NoError(t, first.Close())

	// Reopening runs migrations again; already-applied ones are skipped
	// and the data survives.
	second, err := Open(path, nil)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)

	snapshot, err := second.Load("g1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "g1", snapshot.GuildID)
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)

	q := queue.NewGuildQueue("guild-1", nil)
	q.Enqueue(queue.AudioDescriptor{Title: "A", CanonicalURL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"}, queue.Requester{ID: "1", DisplayName: "alice"})

	snapshot := SnapshotFromView(q.View())
	require.NoError(t, s.Save("guild-1", snapshot))

	loaded, err := s.Load("guild-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, "A", loaded.Entries[0].Title)
	assert.Nil(t, loaded.CurrentEntry)
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)

	q := queue.NewGuildQueue("guild-1", nil)
	q.Enqueue(queue.AudioDescriptor{Title: "A"}, queue.Requester{})
	require.NoError(t, s.Save("guild-1", SnapshotFromView(q.View())))

	q.Enqueue(queue.AudioDescriptor{Title: "B"}, queue.Requester{})
	require.NoError(t, s.Save("guild-1", SnapshotFromView(q.View())))

	loaded, err := s.Load("guild-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Entries, 2)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveIgnoresStaleSnapshot(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Save("g1", &Snapshot{
		GuildID:       "g1",
		SchemaVersion: SchemaVersion,
		LastUpdated:   now,
		Entries:       []EntryRecord{{EntryID: "e1", Title: "newer"}},
	}))

	// A write carrying an older timestamp can land after a newer one
	// when saves run on background goroutines; it must not win.
	require.NoError(t, s.Save("g1", &Snapshot{
		GuildID:       "g1",
		SchemaVersion: SchemaVersion,
		LastUpdated:   now.Add(-time.Minute),
		Entries:       []EntryRecord{{EntryID: "e0", Title: "older"}},
	}))

	snapshot, err := s.Load("g1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "newer", snapshot.Entries[0].Title)

	// A genuinely newer snapshot still replaces the row.
	require.NoError(t, s.Save("g1", &Snapshot{
		GuildID:       "g1",
		SchemaVersion: SchemaVersion,
		LastUpdated:   now.Add(time.Minute),
		Entries:       []EntryRecord{{EntryID: "e2", Title: "newest"}},
	}))

	snapshot, err = s.Load("g1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "newest", snapshot.Entries[0].Title)
}

func TestLoadMissingGuild(t *testing.T) {
	s := openTestStore(t)

	snapshot, err := s.Load("never-seen")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestLoadCorruptPayload(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(
		`INSERT INTO queue_snapshots (guild_id, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)`,
		"guild-1", SchemaVersion, "{not json", time.Now().UTC(),
	)
	require.NoError(t, err)

	// Corrupt data yields empty, never an error that would block startup.
	snapshot, err := s.Load("guild-1")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestLoadNewerSchemaTreatedAsEmpty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(
		`INSERT INTO queue_snapshots (guild_id, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)`,
		"guild-1", SchemaVersion+1, `{"guild_id":"guild-1","schema_version":99}`, time.Now().UTC(),
	)
	require.NoError(t, err)

	snapshot, err := s.Load("guild-1")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestLoadAllSkipsCorruptRows(t *testing.T) {
	s := openTestStore(t)

	q := queue.NewGuildQueue("guild-good", nil)
	q.Enqueue(queue.AudioDescriptor{Title: "A"}, queue.Requester{})
	require.NoError(t, s.Save("guild-good", SnapshotFromView(q.View())))

	_, err := s.db.Exec(
		`INSERT INTO queue_snapshots (guild_id, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)`,
		"guild-bad", SchemaVersion, "garbage", time.Now().UTC(),
	)
	require.NoError(t, err)

	snapshots, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "guild-good", snapshots[0].GuildID)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

	q := queue.NewGuildQueue("guild-1", nil)
	require.NoError(t, s.Save("guild-1", SnapshotFromView(q.View())))
	require.NoError(t, s.Delete("guild-1"))

	snapshot, err := s.Load("guild-1")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestPruneIdle(t *testing.T) {
	s := openTestStore(t)

	stale := time.Now().UTC().Add(-72 * time.Hour)
	_, err := s.db.Exec(
		`INSERT INTO queue_snapshots (guild_id, schema_version, payload, updated_at) VALUES (?, ?, ?, ?)`,
		"guild-stale", SchemaVersion, `{"guild_id":"guild-stale","schema_version":1}`, stale,
	)
	require.NoError(t, err)

	q := queue.NewGuildQueue("guild-fresh", nil)
	require.NoError(t, s.Save("guild-fresh", SnapshotFromView(q.View())))

	pruned, err := s.PruneIdle(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	snapshot, err := s.Load("guild-fresh")
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
}
