package snapshots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/domain"
	"github.com/aristath/reckon/internal/modules/ledger"
)

// RepositoryInterface defines the persistence operations the service needs.
// Kept as an interface to allow mocking in tests.
type RepositoryInterface interface {
	InsertBatch(rows []ledger.Snapshot, syncRunID string) (int, error)
	List(filter ListFilter) ([]StoredSnapshot, error)
	LedgerRows(filter ListFilter) ([]ledger.Snapshot, error)
	CountRows() (int, error)
	DeleteOlderThan(cutoffDate string) (int64, error)
	CreateSyncRun(run SyncRun) error
	FinishSyncRun(id string, rowCount int, status, errMsg string) error
	ListSyncRuns(limit int) ([]SyncRun, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// Defaults configure ledger computations when a request does not override
// them.
type Defaults struct {
	StartingCash  float64
	Capture       ledger.CapturePolicy
	RetentionDays int // <= 0 disables snapshot pruning
}

// Service orchestrates snapshot ingestion and ledger computation.
//
// Ingestion appends rows (snapshots are an immutable capture log); the
// ledger and cash series are always derived on demand from stored rows, so
// a re-sync or late import never leaves stale derived state behind.
type Service struct {
	repo     RepositoryInterface
	broker   domain.BrokerClient
	notifier domain.Notifier
	defaults Defaults
	log      zerolog.Logger
}

// NewService creates a new snapshot service
func NewService(repo RepositoryInterface, broker domain.BrokerClient, notifier domain.Notifier, defaults Defaults, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Service{
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		defaults: defaults,
		log:      log.With().Str("service", "snapshots").Logger(),
	}
}

// BrokerAvailable reports whether a broker client was wired in.
func (s *Service) BrokerAvailable() bool {
	return s.broker != nil
}

// SyncFromBroker captures the broker's current positions as one batch of
// snapshot rows. Every attempt is recorded as a sync run, failed ones
// included.
func (s *Service) SyncFromBroker() (*SyncRun, error) {
	if s.broker == nil {
		return nil, fmt.Errorf("broker client not available")
	}

	run := SyncRun{
		ID:        uuid.New().String(),
		Source:    SourceBroker,
		StartedAt: time.Now().UTC(),
		Status:    SyncStatusRunning,
	}
	if err := s.repo.CreateSyncRun(run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	s.log.Info().Str("sync_run_id", run.ID).Msg("Starting snapshot sync from broker")

	rows, err := s.broker.Positions()
	if err != nil {
		return s.finishRun(run, 0, err)
	}

	inserted, err := s.repo.InsertBatch(rows, run.ID)
	if err != nil {
		return s.finishRun(run, 0, err)
	}

	s.log.Info().
		Str("sync_run_id", run.ID).
		Int("rows", inserted).
		Msg("Snapshot sync completed")

	return s.finishRun(run, inserted, nil)
}

// IngestRows stores externally supplied snapshot rows (bulk import, backfill
// from another broker export). Rows missing a symbol or date are dropped;
// malformed dates are stored as-is and skipped later by the engine.
func (s *Service) IngestRows(rows []ledger.Snapshot) (*SyncRun, error) {
	run := SyncRun{
		ID:        uuid.New().String(),
		Source:    SourceImport,
		StartedAt: time.Now().UTC(),
		Status:    SyncStatusRunning,
	}
	if err := s.repo.CreateSyncRun(run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	now := time.Now().UTC()
	accepted := make([]ledger.Snapshot, 0, len(rows))
	for _, row := range rows {
		// Symbols are stored upper-case; the list filter matches the same way.
		row.Symbol = strings.ToUpper(strings.TrimSpace(row.Symbol))
		if row.Symbol == "" || row.AsOfDate == "" {
			continue
		}
		if row.CapturedAt.IsZero() {
			row.CapturedAt = now
		}
		accepted = append(accepted, row)
	}

	inserted, err := s.repo.InsertBatch(accepted, run.ID)
	if err != nil {
		return s.finishRun(run, 0, err)
	}

	if dropped := len(rows) - len(accepted); dropped > 0 {
		s.log.Warn().
			Str("sync_run_id", run.ID).
			Int("dropped", dropped).
			Msg("Dropped import rows without symbol or date")
	}

	return s.finishRun(run, inserted, nil)
}

// finishRun persists the run outcome and notifies subscribers. The original
// error is passed through so callers see the cause, not bookkeeping noise.
func (s *Service) finishRun(run SyncRun, rowCount int, cause error) (*SyncRun, error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.RowCount = rowCount

	if cause != nil {
		run.Status = SyncStatusError
		run.Error = cause.Error()
	} else {
		run.Status = SyncStatusOK
	}

	if err := s.repo.FinishSyncRun(run.ID, run.RowCount, run.Status, run.Error); err != nil {
		s.log.Error().Err(err).Str("sync_run_id", run.ID).Msg("Failed to record sync run outcome")
	}

	if cause != nil {
		s.log.Error().Err(cause).Str("sync_run_id", run.ID).Msg("Snapshot sync failed")
		s.notifier.Broadcast(domain.EventSyncFailed, run)
		return &run, cause
	}

	s.notifier.Broadcast(domain.EventSyncCompleted, run)
	if rowCount > 0 {
		s.notifier.Broadcast(domain.EventLedgerUpdated, map[string]interface{}{
			"sync_run_id": run.ID,
			"rows":        rowCount,
		})
	}
	return &run, nil
}

// LedgerQuery selects rows and computation options for one ledger build.
// Nil/empty members fall back to the configured defaults.
type LedgerQuery struct {
	From         string
	To           string
	Symbol       string
	StartingCash *float64
	Capture      string
}

// ComputeLedger loads the matching snapshot rows and derives transactions
// and the daily cash series. The computation is all-or-nothing: a cancelled
// or timed-out context aborts the request without a partial ledger.
func (s *Service) ComputeLedger(ctx context.Context, q LedgerQuery) (ledger.Result, error) {
	capture := s.defaults.Capture
	if q.Capture != "" {
		parsed, err := ledger.ParseCapturePolicy(q.Capture)
		if err != nil {
			return ledger.Result{}, err
		}
		capture = parsed
	}

	startingCash := s.defaults.StartingCash
	if q.StartingCash != nil {
		startingCash = *q.StartingCash
	}

	rows, err := s.repo.LedgerRows(ListFilter{From: q.From, To: q.To, Symbol: q.Symbol})
	if err != nil {
		return ledger.Result{}, fmt.Errorf("failed to load snapshots: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return ledger.Result{}, fmt.Errorf("ledger computation aborted: %w", err)
	}

	done := make(chan ledger.Result, 1)
	go func() {
		done <- ledger.Compute(rows, ledger.Options{StartingCash: startingCash, Capture: capture})
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return ledger.Result{}, fmt.Errorf("ledger computation aborted: %w", ctx.Err())
	}
}

// Transactions derives only the inferred transaction list.
func (s *Service) Transactions(ctx context.Context, q LedgerQuery) ([]ledger.Transaction, error) {
	res, err := s.ComputeLedger(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Transactions, nil
}

// CashSeries derives only the daily cash-flow series.
func (s *Service) CashSeries(ctx context.Context, q LedgerQuery) ([]ledger.DailyCashRow, error) {
	res, err := s.ComputeLedger(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.CashRows, nil
}

// ListSnapshots returns stored snapshot rows.
func (s *Service) ListSnapshots(filter ListFilter) ([]StoredSnapshot, error) {
	return s.repo.List(filter)
}

// ListSyncRuns returns recent sync runs, newest first.
func (s *Service) ListSyncRuns(limit int) ([]SyncRun, error) {
	return s.repo.ListSyncRuns(limit)
}

// CountSnapshots returns the total number of stored rows.
func (s *Service) CountSnapshots() (int, error) {
	return s.repo.CountRows()
}

// Cleanup prunes snapshots older than the retention window. A retention of
// zero or less disables pruning.
func (s *Service) Cleanup() (int64, error) {
	if s.defaults.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.defaults.RetentionDays).Format("2006-01-02")
	return s.repo.DeleteOlderThan(cutoff)
}
