package server

import (
	"encoding/json"
	"net/http"
	"time"

	"linefollower_go/internal/api"
	"linefollower_go/internal/discovery"
	"linefollower_go/internal/websocket"
	"linefollower_go/pkg/logger"
	"linefollower_go/pkg/utils"
)

// setupRoutes configura todas as rotas do servidor
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.wsHub)

	var store api.TelemetryStore
	if s.config.Redis.Enabled {
		store = s.redisService
	}
	apiRouter := api.NewRouter(s.loop, store, "/api")
	apiRouter.Setup()

	plain := api.Chain(api.RecoveryMiddleware, api.CorsMiddleware)

	s.router.Handle("/health", plain(http.HandlerFunc(s.healthHandler)))
	s.router.Handle("/info", plain(http.HandlerFunc(s.infoHandler)))
	s.router.Handle("/api/discover", plain(http.HandlerFunc(s.discoverHandler)))

	// o upgrade precisa do ResponseWriter original, sem middlewares
	s.router.Handle("/ws", wsHandler)
	s.router.HandleFunc("/ws/health", wsHandler.GetHealthHandler())

	s.router.Handle("/api/", apiRouter.Handler())
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
	}
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	loopStatus := "ok"
	if !s.loop.IsRunning() {
		loopStatus = "offline"
	} else if st := s.loop.GetStatus(); st.Status != "ok" {
		loopStatus = st.Status
	}

	redisStatus := "disabled"
	if s.config.Redis.Enabled {
		redisStatus = "ok"
		if !s.redisService.IsConnected() {
			redisStatus = "offline"
		}
	}

	plcStatus := "disabled"
	if s.plcService != nil {
		plcStatus = "ok"
		if !s.plcService.IsRunning() {
			plcStatus = "offline"
		}
	}

	discoveryStatus := "disabled"
	if s.discoveryService != nil {
		discoveryStatus = "ok"
		if !s.discoveryService.IsRunning() {
			discoveryStatus = "offline"
		}
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"services": map[string]string{
			"control":   loopStatus,
			"redis":     redisStatus,
			"plc":       plcStatus,
			"websocket": "ok",
			"discovery": discoveryStatus,
		},
	}

	// o loop é o único serviço crítico
	if loopStatus != "ok" {
		response["status"] = "degraded"
	}

	writeJSON(w, http.StatusOK, response)
}

// infoHandler retorna informações básicas sobre o servidor
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()
	stats := s.loop.GetStats()

	response := map[string]interface{}{
		"name":        "Line Follower",
		"version":     info.Version,
		"runId":       info.RunID,
		"ip":          info.IP,
		"port":        info.Port,
		"websocket":   info.WebSocketURL,
		"api":         info.APIURL,
		"startTime":   info.StartTime,
		"uptime":      utils.FormatDuration(time.Since(info.StartTime)),
		"connections": info.Connections,
		"totalCycles": stats.TotalCycles,
		"control": map[string]interface{}{
			"cycleInterval": s.config.Control.CycleInterval.String(),
			"lostPolicy":    s.config.Control.LostPolicy,
			"targetColumn":  s.config.Control.TargetColumn,
			"sensor":        s.config.Vision.Transport,
			"actuator":      s.config.Steering.Transport,
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// discoverHandler fornece informações para descoberta manual
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()

	response := map[string]interface{}{
		"name":        "Line Follower",
		"serviceType": discovery.ServiceType,
		"ip":          info.IP,
		"port":        info.Port,
		"wsUrl":       info.WebSocketURL,
		"apiUrl":      info.APIURL,
		"version":     info.Version,
		"runId":       info.RunID,
		"wsEndpoint":  "/ws",
		"apiEndpoint": "/api",
	}

	writeJSON(w, http.StatusOK, response)
}
