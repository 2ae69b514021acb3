package database

// schemas maps database names to their embedded DDL. All statements are
// idempotent so Migrate can run on every startup.
var schemas = map[string]string{
	"ledger": ledgerSchema,
}

// Schema returns the embedded DDL for a named database. Exposed so tests
// can build throwaway databases with the production schema.
func Schema(name string) (string, bool) {
	ddl, ok := schemas[name]
	return ddl, ok
}

// ledgerSchema holds the append-only snapshot audit trail and the sync run
// bookkeeping. Snapshots are never updated in place; every broker capture
// inserts new rows. The numeric alias fields of a capture are stored as a
// single msgpack blob so that absent/null source fields stay absent instead
// of degrading to zero-valued columns.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    as_of_date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    exchange TEXT NOT NULL DEFAULT '',
    product TEXT NOT NULL DEFAULT '',
    fields BLOB NOT NULL,
    captured_at TEXT NOT NULL,
    sync_run_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots(as_of_date);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_date ON snapshots(symbol, as_of_date);
CREATE INDEX IF NOT EXISTS idx_snapshots_captured_at ON snapshots(captured_at);

CREATE TABLE IF NOT EXISTS sync_runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL DEFAULT 'broker',
    started_at TEXT NOT NULL,
    finished_at TEXT,
    row_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running',
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`
