package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/models"
)

type stubLoop struct {
	status  models.LoopStatus
	last    *models.CycleRecord
	ctrl    models.ControllerState
	stats   models.LoopStats
	running bool
}

func (s *stubLoop) GetStatus() models.LoopStatus               { return s.status }
func (s *stubLoop) GetLastCycle() *models.CycleRecord          { return s.last }
func (s *stubLoop) GetControllerState() models.ControllerState { return s.ctrl }
func (s *stubLoop) GetStats() models.LoopStats                 { return s.stats }
func (s *stubLoop) IsRunning() bool                            { return s.running }

type stubStore struct {
	connected bool
	status    *models.LoopStatus
	current   *models.CycleRecord
	cycles    []models.CycleRecord
	history   map[string][]models.HistoryPoint
	err       error
	gotLimit  int
}

func (s *stubStore) IsConnected() bool { return s.connected }

func (s *stubStore) GetStatus() (*models.LoopStatus, error) { return s.status, s.err }

func (s *stubStore) GetCurrentCycle() (*models.CycleRecord, error) { return s.current, s.err }

func (s *stubStore) GetRecentCycles(limit int) ([]models.CycleRecord, error) {
	s.gotLimit = limit
	return s.cycles, s.err
}

func (s *stubStore) GetHistory(series string) ([]models.HistoryPoint, error) {
	return s.history[series], s.err
}

func newTestRouter(loop LoopProvider, store TelemetryStore) http.Handler {
	r := NewRouter(loop, store, "api/")
	r.Setup()
	return r
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestStatusFromRunningLoop(t *testing.T) {
	loop := &stubLoop{
		running: true,
		status: models.LoopStatus{
			Status:      "ok",
			State:       models.StateTracking,
			TotalCycles: 12,
			LostPolicy:  "stop_and_search",
			Timestamp:   time.UnixMilli(5000),
		},
	}
	store := &stubStore{connected: true, status: &models.LoopStatus{Status: "parado"}}

	rec := doGet(t, newTestRouter(loop, store), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "tracking", body["state"])
	assert.Equal(t, float64(12), body["totalCycles"])
	assert.Equal(t, float64(5000), body["timestamp"])
	assert.Equal(t, true, body["running"])
	assert.NotContains(t, body, "lastError")
}

func TestStatusFallsBackToStoreWhenStopped(t *testing.T) {
	loop := &stubLoop{status: models.LoopStatus{Status: "initializing"}}
	store := &stubStore{connected: true, status: &models.LoopStatus{
		Status:     "falha_sensor",
		LastError:  "timeout",
		ErrorCount: 6,
	}}

	body := decode[map[string]interface{}](t, doGet(t, newTestRouter(loop, store), "/api/status"))
	assert.Equal(t, "falha_sensor", body["status"])
	assert.Equal(t, "timeout", body["lastError"])
	assert.Equal(t, float64(6), body["errorCount"])
}

func TestCurrentCycle(t *testing.T) {
	want := &models.CycleRecord{
		Cycle:    3,
		State:    models.StateTracking,
		Steering: 62,
		Drive:    4069,
		Observation: &models.LineObservation{
			XStart: 40, XEnd: 60, XMid: 50, Deviation: 11,
		},
	}

	t.Run("from loop", func(t *testing.T) {
		rec := doGet(t, newTestRouter(&stubLoop{last: want}, nil), "/api/current")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[models.CycleRecord](t, rec)
		if diff := cmp.Diff(*want, got); diff != "" {
			t.Errorf("current mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("from store", func(t *testing.T) {
		store := &stubStore{connected: true, current: want}
		rec := doGet(t, newTestRouter(&stubLoop{}, store), "/api/current")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 62, decode[models.CycleRecord](t, rec).Steering)
	})

	t.Run("none", func(t *testing.T) {
		rec := doGet(t, newTestRouter(&stubLoop{}, &stubStore{}), "/api/current")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecentCycles(t *testing.T) {
	store := &stubStore{
		connected: true,
		cycles:    []models.CycleRecord{{Cycle: 2}, {Cycle: 1}},
	}
	h := newTestRouter(&stubLoop{}, store)

	rec := doGet(t, h, "/api/cycles?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.CycleRecord](t, rec), 2)
	assert.Equal(t, 2, store.gotLimit)

	doGet(t, h, "/api/cycles")
	assert.Equal(t, 20, store.gotLimit)

	for _, bad := range []string{"0", "101", "x"} {
		rec := doGet(t, h, "/api/cycles?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestRecentCyclesWithoutStoreIsEmptyArray(t *testing.T) {
	rec := doGet(t, newTestRouter(&stubLoop{}, nil), "/api/cycles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	store := &stubStore{connected: true, err: errors.New("redis down")}
	rec = doGet(t, newTestRouter(&stubLoop{}, store), "/api/cycles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	store := &stubStore{
		connected: true,
		history: map[string][]models.HistoryPoint{
			"deviation": {{Value: 11, Timestamp: time.UnixMilli(1000).UTC()}},
		},
	}
	h := newTestRouter(&stubLoop{}, store)

	rec := doGet(t, h, "/api/history/deviation")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]models.HistoryPoint](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, 11.0, got[0].Value)

	rec = doGet(t, h, "/api/history/steering")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doGet(t, h, "/api/history/speedometer")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestController(t *testing.T) {
	loop := &stubLoop{
		ctrl: models.ControllerState{Integral: 0.5, PreviousError: 5},
		stats: models.LoopStats{
			TotalCycles: 10,
			Mean:        2 * time.Millisecond,
			Max:         4500 * time.Microsecond,
		},
	}

	body := decode[map[string]map[string]interface{}](t, doGet(t, newTestRouter(loop, nil), "/api/controller"))
	assert.Equal(t, 0.5, body["controller"]["integral"])
	assert.Equal(t, float64(5), body["controller"]["previousError"])
	assert.Equal(t, float64(10), body["stats"]["totalCycles"])
	assert.Equal(t, 2.0, body["stats"]["meanMs"])
	assert.Equal(t, 4.5, body["stats"]["maxMs"])
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestRouter(&stubLoop{}, nil)
	for _, target := range []string{"/api/status", "/api/current", "/api/cycles", "/api/history/drive", "/api/controller"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}

func TestCorsPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubLoop{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(RecoveryMiddleware)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := doGet(t, h, "/api/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	doGet(t, h, "/")
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
