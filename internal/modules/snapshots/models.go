// Package snapshots persists broker position snapshots and derives the
// transaction ledger and daily cash series from them.
package snapshots

import (
	"time"

	"github.com/aristath/reckon/internal/modules/ledger"
)

// Sync run lifecycle states
const (
	SyncStatusRunning = "running"
	SyncStatusOK      = "ok"
	SyncStatusError   = "error"
)

// Snapshot row origins
const (
	SourceBroker = "broker"
	SourceImport = "import"
)

// StoredSnapshot is a persisted snapshot row together with its storage
// metadata.
type StoredSnapshot struct {
	ID         int64         `json:"id"`
	AsOfDate   string        `json:"as_of_date"`
	Symbol     string        `json:"symbol"`
	Exchange   string        `json:"exchange"`
	Product    string        `json:"product"`
	Fields     ledger.Fields `json:"fields"`
	CapturedAt time.Time     `json:"captured_at"`
	SyncRunID  string        `json:"sync_run_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Row converts the stored form back to engine input.
func (s StoredSnapshot) Row() ledger.Snapshot {
	return ledger.Snapshot{
		AsOfDate:   s.AsOfDate,
		Symbol:     s.Symbol,
		Exchange:   s.Exchange,
		Product:    s.Product,
		CapturedAt: s.CapturedAt,
		Fields:     s.Fields,
	}
}

// SyncRun records one ingestion attempt, scheduled or manual.
type SyncRun struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RowCount   int        `json:"row_count"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}
