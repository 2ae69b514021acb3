package backup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	uploadTimeout   = 10 * time.Minute
	rotationTimeout = 2 * time.Minute
)

// UploadJob ships a fresh backup archive to the bucket on a schedule.
type UploadJob struct {
	service *Service
	log     zerolog.Logger
}

// NewUploadJob creates a new upload job
func NewUploadJob(service *Service, log zerolog.Logger) *UploadJob {
	return &UploadJob{
		service: service,
		log:     log.With().Str("job", "r2_backup").Logger(),
	}
}

// Name returns the job name
func (j *UploadJob) Name() string {
	return "r2_backup"
}

// Run creates and uploads one backup archive.
func (j *UploadJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	archive, err := j.service.CreateAndUpload(ctx)
	if err != nil {
		return err
	}

	j.log.Info().Str("archive", archive).Msg("Scheduled backup finished")
	return nil
}

// RotationJob prunes old backup archives from the bucket.
type RotationJob struct {
	service *Service
	log     zerolog.Logger
}

// NewRotationJob creates a new rotation job
func NewRotationJob(service *Service, log zerolog.Logger) *RotationJob {
	return &RotationJob{
		service: service,
		log:     log.With().Str("job", "r2_backup_rotation").Logger(),
	}
}

// Name returns the job name
func (j *RotationJob) Name() string {
	return "r2_backup_rotation"
}

// Run deletes archives beyond the retention window.
func (j *RotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), rotationTimeout)
	defer cancel()

	return j.service.RotateOldBackups(ctx)
}
