package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/reckon/internal/config"
	"github.com/aristath/reckon/internal/di"
)

// SystemHandlers serves operational endpoints: status, database stats and
// manual job triggers.
type SystemHandlers struct {
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	startedAt time.Time
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config, container *di.Container) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		cfg:       cfg,
		container: container,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers system routes on the given router
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/broker", h.HandleBrokerStatus)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleTriggerJob)
		r.Get("/backups", h.HandleListBackups)
	})
}

// HandleSystemStatus returns a snapshot of process and pipeline health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	rows, err := h.container.SnapshotService.CountSnapshots()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count snapshot rows")
	}

	var lastSync interface{}
	if runs, err := h.container.SnapshotService.ListSyncRuns(1); err != nil {
		h.log.Warn().Err(err).Msg("Failed to load last sync run")
	} else if len(runs) > 0 {
		lastSync = runs[0]
	}

	brokerConnected := false
	if h.container.Broker != nil {
		brokerConnected = h.container.Broker.IsConnected()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":       cpuPercent,
		"ram_percent":       ramPercent,
		"snapshot_rows":     rows,
		"last_sync":         lastSync,
		"websocket_clients": h.container.Hub.SubscriberCount(),
		"broker": map[string]interface{}{
			"configured": h.container.Broker != nil,
			"connected":  brokerConnected,
		},
		"backup_configured": h.container.BackupService != nil,
	})
}

// HandleBrokerStatus probes the broker connection
// GET /api/system/broker
func (h *SystemHandlers) HandleBrokerStatus(w http.ResponseWriter, r *http.Request) {
	if h.container.Broker == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"configured": false})
		return
	}

	response := map[string]interface{}{"configured": true}
	result, err := h.container.Broker.HealthCheck()
	if err != nil {
		h.log.Warn().Err(err).Msg("Broker health check failed")
		response["connected"] = false
		response["error"] = err.Error()
	} else {
		response["connected"] = result.Connected
		response["timestamp"] = result.Timestamp
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns size and page statistics for the ledger DB
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	stats, err := h.container.LedgerDB.GetStats()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := h.container.SnapshotService.CountSnapshots()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count snapshot rows")
	}

	var syncRuns int64
	if err := h.container.LedgerDB.Conn().QueryRow("SELECT COUNT(*) FROM sync_runs").Scan(&syncRuns); err != nil {
		h.log.Warn().Err(err).Msg("Failed to count sync runs")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":           "ledger",
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
		"page_count":     stats.PageCount,
		"page_size":      stats.PageSize,
		"freelist_count": stats.FreelistCount,
		"snapshot_rows":  rows,
		"sync_runs":      syncRuns,
	})
}

// HandleJobsStatus lists the registered background jobs
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.container.Scheduler.JobNames(),
	})
}

// HandleTriggerJob runs a registered job immediately
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := h.container.Scheduler.Job(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	// Jobs can take minutes (broker sync, backup upload); run detached and
	// report failures through the logs.
	go func() {
		if err := h.container.Scheduler.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	})
}

// HandleListBackups lists backup archives in the configured bucket
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.container.BackupService == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backup is not configured")
		return
	}

	backups, err := h.container.BackupService.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, backups)
}

// getSystemStats calculates CPU and RAM usage percentages. The short CPU
// sampling interval keeps the status endpoint fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
