package domain

// Event names pushed to websocket subscribers. Kept in domain so producers
// (snapshots, backup) and the live hub agree without importing each other.
const (
	EventLedgerUpdated   = "ledger_updated"
	EventSyncCompleted   = "sync_completed"
	EventSyncFailed      = "sync_failed"
	EventBackupCompleted = "backup_completed"
)

// Notifier publishes events to connected clients. The live hub implements
// this; services depend on the interface so they stay testable without a
// websocket stack.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

// NopNotifier discards all events. Used when no hub is wired (tests, CLI).
type NopNotifier struct{}

// Broadcast implements Notifier
func (NopNotifier) Broadcast(event string, payload interface{}) {}
