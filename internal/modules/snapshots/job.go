package snapshots

import (
	"github.com/rs/zerolog"
)

// SyncJob captures broker positions on a schedule.
type SyncJob struct {
	service *Service
	log     zerolog.Logger
}

// NewSyncJob creates a new sync job
func NewSyncJob(service *Service, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		service: service,
		log:     log.With().Str("job", "snapshot_sync").Logger(),
	}
}

// Name returns the job name
func (j *SyncJob) Name() string {
	return "snapshot_sync"
}

// Run performs one broker sync.
func (j *SyncJob) Run() error {
	run, err := j.service.SyncFromBroker()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("sync_run_id", run.ID).
		Int("rows", run.RowCount).
		Msg("Scheduled snapshot sync finished")
	return nil
}

// CleanupJob prunes snapshots beyond the retention window.
type CleanupJob struct {
	service *Service
	log     zerolog.Logger
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(service *Service, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		service: service,
		log:     log.With().Str("job", "snapshot_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "snapshot_cleanup"
}

// Run deletes rows older than the retention window.
func (j *CleanupJob) Run() error {
	deleted, err := j.service.Cleanup()
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Snapshot retention cleanup finished")
	}
	return nil
}
