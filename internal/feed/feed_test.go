package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/config"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

func testSignal(id string) *contracts.Signal {
	now := time.Now().UTC()
	return &contracts.Signal{
		ID:        id,
		Symbol:    "BTCUSDT",
		Direction: contracts.Long,
		Entry:     100,
		StopLoss:  98,
		Targets:   []float64{104},
		Tier:      "premium",
		Strategy:  "momentum",
		State:     contracts.StateActive,
		TargetHit: -1,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

// disabledRedis returns a client that no-ops every call, so feed tests need
// no running redis.
func disabledRedis(t *testing.T) *redis.Client {
	t.Helper()
	rc, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return rc
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The dial handshake races the attach; wait for the hub to see us.
	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.Clients(), "consumer never attached")

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(payload, &evt))
	return evt
}

func TestPublishSignal_ReachesWebsocketConsumer(t *testing.T) {
	hub := NewHub(logger.NewNop())
	pub := NewPublisher(disabledRedis(t), hub, logger.NewNop())
	conn := dialHub(t, hub)

	require.NoError(t, pub.PublishSignal(context.Background(), testSignal("sig-1")))

	evt := readEvent(t, conn)
	require.Equal(t, "signal.new", evt.Type)
	require.NotNil(t, evt.Signal)
	require.Equal(t, "sig-1", evt.Signal.ID)
}

func TestPublishLifecycle_EventType(t *testing.T) {
	hub := NewHub(logger.NewNop())
	pub := NewPublisher(disabledRedis(t), hub, logger.NewNop())
	conn := dialHub(t, hub)

	sig := testSignal("sig-2")
	sig.State = contracts.StateWin
	require.NoError(t, pub.PublishLifecycle(context.Background(), sig))

	evt := readEvent(t, conn)
	require.Equal(t, "signal.lifecycle", evt.Type)
	require.Equal(t, contracts.StateWin, evt.Signal.State)
}

func TestPublish_NoConsumersStillSucceeds(t *testing.T) {
	hub := NewHub(logger.NewNop())
	pub := NewPublisher(disabledRedis(t), hub, logger.NewNop())

	require.NoError(t, pub.PublishSignal(context.Background(), testSignal("sig-3")))
}

func TestHubClose_DetachesClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	hub.Close()
	require.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "read after hub close should fail")
}
