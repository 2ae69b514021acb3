// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/database"
	"github.com/aristath/reckon/internal/domain"
	"github.com/aristath/reckon/internal/modules/backup"
	"github.com/aristath/reckon/internal/modules/charts"
	"github.com/aristath/reckon/internal/modules/live"
	"github.com/aristath/reckon/internal/modules/snapshots"
	"github.com/aristath/reckon/internal/scheduler"
)

// Container holds all initialized dependencies
type Container struct {
	LedgerDB *database.DB

	SnapshotRepo    *snapshots.Repository
	SnapshotService *snapshots.Service
	ChartService    *charts.Service

	// Broker is nil when no credentials are configured.
	Broker domain.BrokerClient

	// BackupService is nil when no bucket is configured.
	BackupService *backup.Service

	Hub       *live.Hub
	Scheduler *scheduler.Scheduler

	log zerolog.Logger
}

// Close releases all container resources
func (c *Container) Close() {
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.LedgerDB != nil {
		if err := c.LedgerDB.Close(); err != nil {
			c.log.Error().Err(err).Msg("Failed to close ledger database")
		}
	}
	c.log.Info().Msg("Container closed")
}
