package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Vision.Transport = config.TransportSim
	cfg.Steering.Transport = config.TransportLog
	cfg.Redis.Enabled = false
	cfg.PLC.Enabled = false
	cfg.Server.Discovery = false
	cfg.Server.Port = 0
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		s.loop.Stop()
		s.wsHub.Shutdown()
	})
	return s
}

func get(t *testing.T, s *Server, target string) map[string]interface{} {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, target)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewServerRejectsUnknownTransports(t *testing.T) {
	cfg := testConfig()
	cfg.Vision.Transport = "usb"
	_, err := NewServer(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Steering.Transport = "can"
	_, err = NewServer(cfg)
	assert.Error(t, err)
}

func TestHealthReflectsLoop(t *testing.T) {
	s := newTestServer(t)

	body := get(t, s, "/health")
	assert.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]interface{})
	assert.Equal(t, "offline", services["control"])
	assert.Equal(t, "disabled", services["redis"])
	assert.Equal(t, "disabled", services["plc"])
	assert.Equal(t, "disabled", services["discovery"])

	require.NoError(t, s.loop.Start())

	body = get(t, s, "/health")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["services"].(map[string]interface{})["control"])
}

func TestInfoAndDiscover(t *testing.T) {
	s := newTestServer(t)

	info := get(t, s, "/info")
	assert.Equal(t, "Line Follower", info["name"])
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, s.loop.RunID(), info["runId"])
	control := info["control"].(map[string]interface{})
	assert.Equal(t, "20ms", control["cycleInterval"])
	assert.Equal(t, config.LostPolicyStopAndSearch, control["lostPolicy"])
	assert.Equal(t, float64(39), control["targetColumn"])

	disc := get(t, s, "/api/discover")
	assert.Equal(t, "_linefollower._tcp", disc["serviceType"])
	assert.Equal(t, "/ws", disc["wsEndpoint"])
	assert.Equal(t, s.loop.RunID(), disc["runId"])
}

func TestAPIMountedUnderPrefix(t *testing.T) {
	s := newTestServer(t)

	status := get(t, s, "/api/status")
	assert.Equal(t, "initializing", status["status"])
	assert.Equal(t, false, status["running"])

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/current", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, s.loop.Start())
	require.Eventually(t, func() bool { return s.loop.GetLastCycle() != nil }, 2*time.Second, 10*time.Millisecond)

	current := get(t, s, "/api/current")
	assert.Equal(t, s.loop.RunID(), current["runId"])

	ctrl := get(t, s, "/api/controller")
	assert.Contains(t, ctrl, "controller")
	assert.Contains(t, ctrl, "stats")
}

func TestWebsocketHealth(t *testing.T) {
	s := newTestServer(t)
	body := get(t, s, "/ws/health")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestShutdownStopsLoop(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.loop.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, s.loop.IsRunning())
	assert.Equal(t, "parado", s.loop.GetStatus().Status)
}
