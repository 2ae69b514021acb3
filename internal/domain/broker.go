package domain

import "github.com/aristath/reckon/internal/modules/ledger"

// Broker-agnostic contracts for snapshot ingestion.
// These abstract away broker-specific implementations (Kite Connect today,
// other brokers later) so the sync pipeline never imports an SDK directly.

// BrokerClient defines the operations the snapshot sync pipeline needs from
// a broker. Implementations translate SDK payloads into ledger.Snapshot rows.
type BrokerClient interface {
	// Positions returns the current day-level position snapshots. One row
	// per (symbol, exchange, product) the broker reports.
	Positions() ([]ledger.Snapshot, error)

	// Connection & health
	IsConnected() bool
	HealthCheck() (*BrokerHealthResult, error)
	SetCredentials(apiKey, accessToken string)
}

// BrokerHealthResult represents broker connection health status
type BrokerHealthResult struct {
	Connected bool   // Whether broker is reachable with current credentials
	Timestamp string // Timestamp of health check
}
