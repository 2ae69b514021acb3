package snapshots

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/reckon/internal/database"
	"github.com/aristath/reckon/internal/modules/ledger"
)

// Repository handles snapshot and sync-run persistence in ledger.db.
//
// The alias fields of a snapshot are stored as a single msgpack blob per row
// so that absent source fields stay absent instead of degrading to zero-value
// columns. Identity and date get their own columns for indexed filtering.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// ListFilter narrows List and LedgerRows queries. Zero values mean no
// constraint.
type ListFilter struct {
	From   string // inclusive, YYYY-MM-DD
	To     string // inclusive, YYYY-MM-DD
	Symbol string
	Limit  int
}

// InsertBatch stores rows atomically, tagging each with syncRunID. Either
// every row is inserted or none are.
func (r *Repository) InsertBatch(rows []ledger.Snapshot, syncRunID string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	inserted := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO snapshots (as_of_date, symbol, exchange, product, fields, captured_at, sync_run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			blob, err := msgpack.Marshal(row.Fields)
			if err != nil {
				return fmt.Errorf("failed to encode fields for %s: %w", row.Symbol, err)
			}

			capturedAt := ""
			if !row.CapturedAt.IsZero() {
				capturedAt = row.CapturedAt.UTC().Format(time.RFC3339)
			}

			if _, err := stmt.Exec(row.AsOfDate, row.Symbol, row.Exchange, row.Product, blob, capturedAt, syncRunID); err != nil {
				return fmt.Errorf("failed to insert snapshot %s/%s: %w", row.AsOfDate, row.Symbol, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().Int("rows", inserted).Str("sync_run_id", syncRunID).Msg("Inserted snapshot batch")
	return inserted, nil
}

// List returns stored snapshots matching the filter, ordered by
// (as_of_date, symbol, insertion order).
func (r *Repository) List(filter ListFilter) ([]StoredSnapshot, error) {
	query := `SELECT id, as_of_date, symbol, exchange, product, fields, captured_at, sync_run_id, created_at FROM snapshots`
	where := []string{}
	args := []interface{}{}

	if filter.From != "" {
		where = append(where, "as_of_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "as_of_date <= ?")
		args = append(args, filter.To)
	}
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Symbol)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY as_of_date, symbol, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := []StoredSnapshot{}
	for rows.Next() {
		var (
			s          StoredSnapshot
			blob       []byte
			capturedAt string
			createdAt  string
		)
		if err := rows.Scan(&s.ID, &s.AsOfDate, &s.Symbol, &s.Exchange, &s.Product, &blob, &capturedAt, &s.SyncRunID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &s.Fields); err != nil {
				return nil, fmt.Errorf("failed to decode fields for snapshot %d: %w", s.ID, err)
			}
		}
		s.CapturedAt = parseStoredTime(capturedAt)
		s.CreatedAt = parseStoredTime(createdAt)
		out = append(out, s)
	}

	return out, rows.Err()
}

// LedgerRows returns matching rows converted to engine input.
func (r *Repository) LedgerRows(filter ListFilter) ([]ledger.Snapshot, error) {
	stored, err := r.List(filter)
	if err != nil {
		return nil, err
	}

	rows := make([]ledger.Snapshot, 0, len(stored))
	for _, s := range stored {
		rows = append(rows, s.Row())
	}
	return rows, nil
}

// CountRows returns the total number of stored snapshots.
func (r *Repository) CountRows() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes snapshots dated strictly before cutoffDate
// (YYYY-MM-DD). Returns the number of deleted rows.
func (r *Repository) DeleteOlderThan(cutoffDate string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM snapshots WHERE as_of_date < ?", cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Str("cutoff", cutoffDate).Msg("Pruned old snapshots")
	}
	return deleted, nil
}

// CreateSyncRun inserts a run in the running state.
func (r *Repository) CreateSyncRun(run SyncRun) error {
	_, err := r.db.Exec(
		"INSERT INTO sync_runs (id, source, started_at, status, row_count) VALUES (?, ?, ?, ?, 0)",
		run.ID, run.Source, run.StartedAt.UTC().Format(time.RFC3339), SyncStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun marks a run finished with its outcome.
func (r *Repository) FinishSyncRun(id string, rowCount int, status, errMsg string) error {
	_, err := r.db.Exec(
		"UPDATE sync_runs SET finished_at = ?, row_count = ?, status = ?, error = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), rowCount, status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first.
func (r *Repository) ListSyncRuns(limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		"SELECT id, source, started_at, finished_at, row_count, status, error FROM sync_runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	out := []SyncRun{}
	for rows.Next() {
		var (
			run        SyncRun
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Source, &startedAt, &finishedAt, &run.RowCount, &run.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		run.StartedAt = parseStoredTime(startedAt)
		if finishedAt.Valid && finishedAt.String != "" {
			t := parseStoredTime(finishedAt.String)
			run.FinishedAt = &t
		}
		run.Error = errMsg.String
		out = append(out, run)
	}

	return out, rows.Err()
}

// parseStoredTime accepts both RFC3339 (written by this package) and
// SQLite's datetime('now') format (written by column defaults).
func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
