package store

import (
	"github.com/charmbracelet/log"

	"github.com/latoulicious/Kitasan/pkg/provider"
	"github.com/latoulicious/Kitasan/pkg/queue"
)

// RestoreReport says what survived a snapshot restore. Entries whose
// canonical URL no longer matches a registered provider are excluded
// and reported, never silently dropped along with the rest.
type RestoreReport struct {
	GuildID  string
	Restored int
	Invalid  []EntryRecord
}

// RestoreGuild rebuilds a guild queue from its snapshot, validating
// every entry against the provider registry. Meant to run during
// startup, before the guild accepts new mutations.
func RestoreGuild(q *queue.GuildQueue, registry *provider.Registry, snapshot *Snapshot, logger *log.Logger) RestoreReport {
	if logger == nil {
		logger = log.Default()
	}

	report := RestoreReport{GuildID: snapshot.GuildID}

	var current *queue.QueueEntry
	if snapshot.CurrentEntry != nil {
		if registry.Validate(snapshot.CurrentEntry.CanonicalURL) {
			entry := snapshot.CurrentEntry.toEntry()
			current = &entry
			report.Restored++
		} else {
			report.Invalid = append(report.Invalid, *snapshot.CurrentEntry)
		}
	}

	entries := make([]queue.QueueEntry, 0, len(snapshot.Entries))
	for _, record := range snapshot.Entries {
		if !registry.Validate(record.CanonicalURL) {
			report.Invalid = append(report.Invalid, record)
			continue
		}
		entries = append(entries, record.toEntry())
		report.Restored++
	}

	offset := snapshot.Offset()
	if current == nil {
		offset = 0
	}
	q.Restore(current, entries, offset)

	if len(report.Invalid) > 0 {
		logger.Warn("some persisted entries no longer match a provider",
			"guild_id", snapshot.GuildID, "invalid", len(report.Invalid), "restored", report.Restored)
	}
	return report
}
