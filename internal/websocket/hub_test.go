package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/models"
)

type stubProvider struct{}

func (stubProvider) GetStatus() models.LoopStatus {
	return models.LoopStatus{Status: "ok", State: models.StateTracking, TotalCycles: 7}
}

func (stubProvider) GetControllerState() models.ControllerState {
	return models.ControllerState{Integral: 0.5, PreviousError: 4}
}

func (stubProvider) GetLastCycle() *models.CycleRecord {
	return &models.CycleRecord{Cycle: 7, State: models.StateTracking, Steering: 80}
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(hub))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType lê mensagens até encontrar o tipo pedido
func readType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	hub.SetProvider(stubProvider{})
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return hub
}

func TestClientReceivesInitialData(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub)

	welcome := readType(t, conn, TypeWelcome)
	assert.NotEmpty(t, welcome["data"].(map[string]interface{})["clientId"])

	status := readType(t, conn, TypeStatus)
	assert.Equal(t, "tracking", status["status"].(map[string]interface{})["state"])

	cycle := readType(t, conn, TypeCycle)
	assert.Equal(t, float64(80), cycle["cycle"].(map[string]interface{})["steering"])
}

func TestClientCommands(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub)
	readType(t, conn, TypeWelcome)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": CommandGetController}))
	ctrl := readType(t, conn, TypeController)
	assert.Equal(t, float64(4), ctrl["controller"].(map[string]interface{})["previousError"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": CommandPing, "params": map[string]interface{}{"time": 1234}}))
	pong := readType(t, conn, TypePong)
	assert.Equal(t, float64(1234), pong["time"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "reboot"}))
	errMsg := readType(t, conn, TypeError)
	assert.Contains(t, errMsg["error"], "reboot")
}

func TestBroadcastCycleReachesClients(t *testing.T) {
	hub := startHub(t)
	hub.SetMinInterval(0)
	conn := dial(t, hub)
	readType(t, conn, TypeWelcome)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastCycle(models.CycleRecord{Cycle: 99, State: models.StateLost, Steering: 45})

	// pula o ciclo inicial enviado na conexão
	for {
		msg := readType(t, conn, TypeCycle)
		if msg["cycle"].(map[string]interface{})["cycle"] == float64(99) {
			assert.Equal(t, "lost", msg["cycle"].(map[string]interface{})["state"])
			return
		}
	}
}

func TestCycleThrottle(t *testing.T) {
	hub := NewHub()
	hub.SetMinInterval(time.Hour)

	base := models.CycleRecord{State: models.StateTracking, Steering: 90}
	assert.True(t, hub.shouldSendCycle(base))

	small := base
	small.Steering = 92
	assert.False(t, hub.shouldSendCycle(small))

	turn := base
	turn.Steering = 60
	assert.True(t, hub.shouldSendCycle(turn))

	lost := turn
	lost.State = models.StateLost
	assert.True(t, hub.shouldSendCycle(lost))
}
