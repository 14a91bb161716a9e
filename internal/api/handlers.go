package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linefollower_go/internal/models"
	"linefollower_go/internal/redis"
	"linefollower_go/pkg/logger"
)

// maxRecentCycles limita o parâmetro limit de /cycles
const maxRecentCycles = 100

// LoopProvider é a visão do loop de controle usada pela API
type LoopProvider interface {
	GetStatus() models.LoopStatus
	GetLastCycle() *models.CycleRecord
	GetControllerState() models.ControllerState
	GetStats() models.LoopStats
	IsRunning() bool
}

// TelemetryStore é a visão da telemetria persistida usada pela API
type TelemetryStore interface {
	IsConnected() bool
	GetStatus() (*models.LoopStatus, error)
	GetCurrentCycle() (*models.CycleRecord, error)
	GetRecentCycles(limit int) ([]models.CycleRecord, error)
	GetHistory(series string) ([]models.HistoryPoint, error)
}

// Handler contém os handlers HTTP para a API
type Handler struct {
	loop  LoopProvider
	store TelemetryStore
}

// NewHandler cria um novo handler de API. store pode ser nil.
func NewHandler(loop LoopProvider, store TelemetryStore) *Handler {
	return &Handler{
		loop:  loop,
		store: store,
	}
}

func (h *Handler) storeAvailable() bool {
	return h.store != nil && h.store.IsConnected()
}

// GetStatus retorna o status atual do loop
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	// O serviço em memória é a fonte principal; o Redis só é usado quando o
	// loop não está rodando neste processo
	status := h.loop.GetStatus()
	if !h.loop.IsRunning() && h.storeAvailable() {
		if stored, err := h.store.GetStatus(); err == nil && stored != nil {
			status = *stored
		}
	}

	response := map[string]interface{}{
		"status":      status.Status,
		"state":       status.State,
		"totalCycles": status.TotalCycles,
		"running":     h.loop.IsRunning(),
		"timestamp":   status.Timestamp.UnixNano() / int64(time.Millisecond),
	}
	if status.LostPolicy != "" {
		response["lostPolicy"] = status.LostPolicy
	}
	if status.LastError != "" {
		response["lastError"] = status.LastError
	}
	if status.ErrorCount > 0 {
		response["errorCount"] = status.ErrorCount
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

// GetCurrentCycle retorna o último ciclo executado
func (h *Handler) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	rec := h.loop.GetLastCycle()
	if rec == nil && h.storeAvailable() {
		if stored, err := h.store.GetCurrentCycle(); err == nil {
			rec = stored
		}
	}

	if rec == nil {
		h.respondWithError(w, http.StatusNotFound, "Nenhum ciclo disponível")
		return
	}

	h.respondWithJSON(w, http.StatusOK, rec)
}

// GetRecentCycles retorna os últimos ciclos gravados no Redis
func (h *Handler) GetRecentCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentCycles {
			h.respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("Parâmetro limit inválido. Deve ser entre 1 e %d.", maxRecentCycles))
			return
		}
		limit = n
	}

	var cycles []models.CycleRecord
	if h.storeAvailable() {
		stored, err := h.store.GetRecentCycles(limit)
		if err != nil {
			logger.Warnf("Erro ao obter ciclos recentes: %v", err)
		} else {
			cycles = stored
		}
	}

	if cycles == nil {
		cycles = []models.CycleRecord{}
	}

	h.respondWithJSON(w, http.StatusOK, cycles)
}

// GetHistory retorna o histórico de uma série (deviation, steering ou drive)
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	series := path[strings.LastIndex(path, "/")+1:]
	switch series {
	case redis.SeriesDeviation, redis.SeriesSteering, redis.SeriesDrive:
	default:
		h.respondWithError(w, http.StatusBadRequest,
			"Série inválida. Use deviation, steering ou drive.")
		return
	}

	var history []models.HistoryPoint
	if h.storeAvailable() {
		stored, err := h.store.GetHistory(series)
		if err != nil {
			logger.Warnf("Erro ao obter histórico %s: %v", series, err)
		} else {
			history = stored
		}
	}

	if history == nil {
		history = []models.HistoryPoint{}
	}

	h.respondWithJSON(w, http.StatusOK, history)
}

// GetController retorna o estado do PID e as estatísticas de tempo do loop
func (h *Handler) GetController(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	stats := h.loop.GetStats()
	response := map[string]interface{}{
		"controller": h.loop.GetControllerState(),
		"stats": map[string]interface{}{
			"totalCycles": stats.TotalCycles,
			"meanMs":      durationMillis(stats.Mean),
			"stdDevMs":    durationMillis(stats.StdDev),
			"maxMs":       durationMillis(stats.Max),
		},
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// respondWithError responde com erro em formato JSON
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON responde com JSON
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
		fmt.Fprintf(w, `{"error":"Erro interno ao processar resposta"}`)
	}
}
