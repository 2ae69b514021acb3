package kite

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// mockSDK is a mock implementation of SDK for testing
type mockSDK struct {
	positionsResult kiteconnect.Positions
	positionsError  error
	calls           int
}

func (m *mockSDK) GetPositions() (kiteconnect.Positions, error) {
	m.calls++
	return m.positionsResult, m.positionsError
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestPositions_Success(t *testing.T) {
	sdk := &mockSDK{
		positionsResult: kiteconnect.Positions{
			Net: []kiteconnect.Position{
				{Tradingsymbol: "RELIANCE", Exchange: "NSE", Product: "CNC", DayBuyQuantity: 10, DayBuyPrice: 2500},
				{Tradingsymbol: "INFY", Exchange: "NSE", Product: "CNC", Quantity: 5, LastPrice: 1400},
			},
		},
	}
	client := NewClientWithSDK(sdk, time.UTC, testLogger())

	rows, err := client.Positions()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RELIANCE", rows[0].Symbol)
	assert.Equal(t, "INFY", rows[1].Symbol)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), rows[0].AsOfDate)
}

func TestPositions_SDKError(t *testing.T) {
	sdk := &mockSDK{positionsError: errors.New("token expired")}
	client := NewClientWithSDK(sdk, time.UTC, testLogger())

	rows, err := client.Positions()
	assert.Nil(t, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch positions")
}

func TestIsConnected(t *testing.T) {
	client := NewClient("", "", time.UTC, testLogger())
	assert.False(t, client.IsConnected())

	client.SetCredentials("api-key", "access-token")
	assert.True(t, client.IsConnected())
}

func TestHealthCheck_NoCredentials(t *testing.T) {
	client := NewClientWithSDK(&mockSDK{}, time.UTC, testLogger())

	result, err := client.HealthCheck()
	require.NoError(t, err)
	assert.False(t, result.Connected)
	assert.NotEmpty(t, result.Timestamp)
}

func TestHealthCheck_Connected(t *testing.T) {
	sdk := &mockSDK{}
	client := NewClientWithSDK(sdk, time.UTC, testLogger())
	client.apiKey = "k"
	client.accessToken = "t"

	result, err := client.HealthCheck()
	require.NoError(t, err)
	assert.True(t, result.Connected)
	assert.Equal(t, 1, sdk.calls)
}

func TestHealthCheck_BrokerDown(t *testing.T) {
	sdk := &mockSDK{positionsError: errors.New("503")}
	client := NewClientWithSDK(sdk, time.UTC, testLogger())
	client.apiKey = "k"
	client.accessToken = "t"

	result, err := client.HealthCheck()
	require.Error(t, err)
	assert.False(t, result.Connected)
}
