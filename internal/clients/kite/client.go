// Package kite provides the Kite Connect client used for position snapshot
// ingestion. It adapts the official SDK to the domain.BrokerClient contract.
package kite

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/aristath/reckon/internal/domain"
	"github.com/aristath/reckon/internal/modules/ledger"
)

// SDK is the subset of the Kite Connect client this package calls.
// Kept narrow so tests can substitute a mock without network access.
type SDK interface {
	GetPositions() (kiteconnect.Positions, error)
}

// Client adapts the Kite Connect SDK to domain.BrokerClient
type Client struct {
	sdk         SDK
	log         zerolog.Logger
	loc         *time.Location
	apiKey      string
	accessToken string
}

// NewClient creates a new Kite client
// Credentials may be empty; calls fail with SDK errors until SetCredentials
// provides real ones.
func NewClient(apiKey, accessToken string, loc *time.Location, log zerolog.Logger) *Client {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)

	return &Client{
		sdk:         kc,
		log:         log.With().Str("client", "kite").Logger(),
		loc:         loc,
		apiKey:      apiKey,
		accessToken: accessToken,
	}
}

// NewClientWithSDK creates a new Kite client with a provided SDK client (for testing)
func NewClientWithSDK(sdk SDK, loc *time.Location, log zerolog.Logger) *Client {
	return &Client{
		sdk: sdk,
		log: log.With().Str("client", "kite").Logger(),
		loc: loc,
	}
}

// SetCredentials sets the API credentials for the client
// This will recreate the SDK client with new credentials
func (c *Client) SetCredentials(apiKey, accessToken string) {
	c.apiKey = apiKey
	c.accessToken = accessToken

	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	c.sdk = kc
}

// IsConnected reports whether credentials are present. Kite access tokens
// expire daily, so this is only a local check; HealthCheck verifies for real.
func (c *Client) IsConnected() bool {
	return c.apiKey != "" && c.accessToken != ""
}

// Positions fetches net positions from the broker and converts them to
// snapshot rows stamped with the current trading date in the market timezone.
func (c *Client) Positions() ([]ledger.Snapshot, error) {
	if c.sdk == nil {
		return nil, fmt.Errorf("SDK client not initialized")
	}

	positions, err := c.sdk.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	capturedAt := time.Now().In(c.loc)
	rows := transformPositions(positions.Net, capturedAt)

	c.log.Debug().
		Int("net_positions", len(positions.Net)).
		Str("as_of_date", capturedAt.Format(dateLayout)).
		Msg("Fetched position snapshots")

	return rows, nil
}

// HealthCheck implements domain.BrokerClient
// Verifies connectivity by performing a cheap authenticated call.
func (c *Client) HealthCheck() (*domain.BrokerHealthResult, error) {
	result := &domain.BrokerHealthResult{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if c.sdk == nil || !c.IsConnected() {
		return result, nil
	}

	if _, err := c.sdk.GetPositions(); err != nil {
		return result, fmt.Errorf("broker health check failed: %w", err)
	}

	result.Connected = true
	return result, nil
}

var _ domain.BrokerClient = (*Client)(nil)
