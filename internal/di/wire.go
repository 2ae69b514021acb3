package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/clients/kite"
	"github.com/aristath/reckon/internal/config"
	"github.com/aristath/reckon/internal/database"
	"github.com/aristath/reckon/internal/modules/backup"
	"github.com/aristath/reckon/internal/modules/charts"
	"github.com/aristath/reckon/internal/modules/ledger"
	"github.com/aristath/reckon/internal/modules/live"
	"github.com/aristath/reckon/internal/modules/snapshots"
	"github.com/aristath/reckon/internal/scheduler"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Open the ledger database and apply its schema
// 2. Build the live hub and optional broker client
// 3. Build repositories and services
// 4. Register scheduled jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{log: log.With().Str("component", "di").Logger()}

	// Step 1: ledger database
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	if err := ledgerDB.Migrate(); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// Step 2: live hub and broker
	container.Hub = live.NewHub(log)

	if cfg.BrokerConfigured() {
		loc, err := time.LoadLocation(cfg.SyncTimezone)
		if err != nil {
			log.Warn().Err(err).Str("timezone", cfg.SyncTimezone).Msg("Invalid sync timezone, falling back to UTC")
			loc = time.UTC
		}
		container.Broker = kite.NewClient(cfg.KiteAPIKey, cfg.KiteAccessToken, loc, log)
	} else {
		log.Info().Msg("Broker credentials not configured, sync disabled")
	}

	// Step 3: repositories and services
	container.SnapshotRepo = snapshots.NewRepository(ledgerDB.Conn(), log)
	container.SnapshotService = snapshots.NewService(
		container.SnapshotRepo,
		container.Broker,
		container.Hub,
		snapshots.Defaults{
			StartingCash:  cfg.StartingCash,
			Capture:       ledger.CapturePolicy(cfg.CapturePolicy),
			RetentionDays: cfg.SnapshotRetentionDays,
		},
		log,
	)
	container.ChartService = charts.NewService(container.SnapshotService, log)

	if cfg.BackupConfigured() {
		r2, err := backup.NewR2Client(context.Background(), backup.R2Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
		}, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize backup client: %w", err)
		}
		container.BackupService = backup.NewService(
			ledgerDB, r2, container.Hub, cfg.DataDir, cfg.BackupRetentionDays, log,
		)
	} else {
		log.Info().Msg("Backup bucket not configured, backups disabled")
	}

	// Step 4: scheduled jobs
	container.Scheduler = scheduler.New(log)
	if err := registerJobs(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// registerJobs attaches the background jobs that apply to this configuration.
func registerJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := container.Scheduler

	if container.Broker != nil {
		schedule := fmt.Sprintf("@every %dm", cfg.SyncIntervalMinutes)
		if err := sched.AddJob(schedule, snapshots.NewSyncJob(container.SnapshotService, log)); err != nil {
			return err
		}
	}

	if cfg.SnapshotRetentionDays > 0 {
		// 3 AM daily, after the backup window.
		if err := sched.AddJob("0 0 3 * * *", snapshots.NewCleanupJob(container.SnapshotService, log)); err != nil {
			return err
		}
	}

	if err := sched.AddJob("@hourly", scheduler.NewMaintenanceJob(container.LedgerDB, log)); err != nil {
		return err
	}

	if container.BackupService != nil {
		if err := sched.AddJob("0 0 2 * * *", backup.NewUploadJob(container.BackupService, log)); err != nil {
			return err
		}
		if err := sched.AddJob("0 30 2 * * *", backup.NewRotationJob(container.BackupService, log)); err != nil {
			return err
		}
	}

	return nil
}
