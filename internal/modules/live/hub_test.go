package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/reckon/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestBroadcast_DeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(testLogger())

	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Broadcast(domain.EventLedgerUpdated, map[string]int{"rows": 3})

	for _, events := range []<-chan Event{first, second} {
		ev := <-events
		assert.Equal(t, domain.EventLedgerUpdated, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestBroadcast_DropsWhenBacklogFull(t *testing.T) {
	hub := NewHub(testLogger())

	events, cancel := hub.Subscribe()
	defer cancel()

	// Nobody is draining, so everything past the buffer is lost.
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Broadcast("tick", i)
	}

	drained := 0
loop:
	for {
		select {
		case <-events:
			drained++
		default:
			break loop
		}
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestSubscribeCancel(t *testing.T) {
	hub := NewHub(testLogger())

	events, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	cancel()
	assert.Equal(t, 0, hub.SubscriberCount())

	// The channel is closed and later broadcasts do not reach it.
	hub.Broadcast("tick", nil)
	_, ok := <-events
	assert.False(t, ok)

	// Cancelling twice is harmless.
	cancel()
}

func TestClose(t *testing.T) {
	hub := NewHub(testLogger())

	events, cancel := hub.Subscribe()
	defer cancel()

	hub.Close()
	_, ok := <-events
	assert.False(t, ok)

	// Broadcast and a second Close are no-ops afterwards.
	hub.Broadcast("tick", nil)
	hub.Close()

	// New subscriptions report closed immediately.
	late, lateCancel := hub.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHandleWebSocket_StreamsEvents(t *testing.T) {
	hub := NewHub(testLogger())
	handler := NewHandler(hub, testLogger())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(domain.EventSyncCompleted, map[string]interface{}{"rows": 2})

	var ev Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, domain.EventSyncCompleted, ev.Type)
	payload, ok := ev.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), payload["rows"])
}

func TestHandleWebSocket_ClientDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(testLogger())
	handler := NewHandler(hub, testLogger())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
