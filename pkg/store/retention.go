package store

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// RetentionJob periodically prunes snapshots for guilds that have been
// idle past the retention window, so the database does not accumulate
// queues nobody will resume.
type RetentionJob struct {
	cron      *cron.Cron
	cronEntry cron.EntryID
	store     *Store
	retention time.Duration
	schedule  string
	logger    *log.Logger

	mutex     sync.RWMutex
	isRunning bool
}

// NewRetentionJob schedules pruning with the default cadence of every
// six hours.
func NewRetentionJob(store *Store, retention time.Duration, logger *log.Logger) *RetentionJob {
	return NewRetentionJobWithSchedule(store, retention, "0 0 */6 * * *", logger)
}

// NewRetentionJobWithSchedule schedules pruning with a custom cron
// expression (with seconds).
func NewRetentionJobWithSchedule(store *Store, retention time.Duration, schedule string, logger *log.Logger) *RetentionJob {
	if logger == nil {
		logger = log.Default()
	}

	job := &RetentionJob{
		cron:      cron.New(cron.WithSeconds()),
		store:     store,
		retention: retention,
		schedule:  schedule,
		logger:    logger.With("component", "retention"),
	}

	job.cron.Start()

	entryID, err := job.cron.AddFunc(schedule, job.run)
	if err != nil {
		job.logger.Error("failed to schedule snapshot pruning", "schedule", schedule, "error", err)
	} else {
		job.cronEntry = entryID
		job.logger.Info("scheduled snapshot pruning", "schedule", schedule, "retention", retention)
	}

	return job
}

func (j *RetentionJob) run() {
	j.mutex.Lock()
	if j.isRunning {
		j.mutex.Unlock()
		j.logger.Debug("prune already in progress, skipping")
		return
	}
	j.isRunning = true
	j.mutex.Unlock()

	defer func() {
		j.mutex.Lock()
		j.isRunning = false
		j.mutex.Unlock()
	}()

	pruned, err := j.store.PruneIdle(j.retention)
	if err != nil {
		j.logger.Error("snapshot pruning failed", "error", err)
		return
	}
	if pruned > 0 {
		j.logger.Info("pruned idle snapshots", "count", pruned)
	}
}

// Stop stops the scheduler.
func (j *RetentionJob) Stop() {
	if j.cron != nil {
		j.cron.Stop()
		j.logger.Info("retention job stopped")
	}
}

// NextRun returns the next scheduled prune time.
func (j *RetentionJob) NextRun() time.Time {
	if j.cron != nil {
		entries := j.cron.Entries()
		if len(entries) > 0 {
			return entries[0].Next
		}
	}
	return time.Time{}
}

// IsRunning reports whether a prune is currently in progress.
func (j *RetentionJob) IsRunning() bool {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.isRunning
}

// Schedule returns the cron expression in use.
func (j *RetentionJob) Schedule() string {
	return j.schedule
}
