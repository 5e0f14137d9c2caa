package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	r := gin.New()
	r.GET("/ws", Handler(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, url := startHub(t)

	conns := make([]*gorilla.Conn, 2)
	for i := range conns {
		conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn

		welcome := readMessage(t, conn)
		assert.Equal(t, MessageTypeConnection, welcome.Type)
		assert.NotEmpty(t, welcome.Data["client_id"])
	}

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast("alert", map[string]interface{}{"title": "Slow database"}))

	for _, conn := range conns {
		msg := readMessage(t, conn)
		assert.Equal(t, "alert", msg.Type)
		assert.Equal(t, "Slow database", msg.Data["title"])
	}

	stats := hub.Stats()
	assert.Equal(t, int64(2), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.MessagesSent)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_FullQueue(t *testing.T) {
	hub := NewHub(nil) // not running, nothing drains the queue

	var err error
	for i := 0; i < cap(hub.broadcast)+1; i++ {
		err = hub.Broadcast("alert", nil)
	}
	assert.ErrorIs(t, err, ErrHubFull)
}
