package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"linefollower_go/internal/actuator"
	"linefollower_go/internal/config"
	"linefollower_go/internal/control"
	"linefollower_go/internal/discovery"
	"linefollower_go/internal/plc"
	"linefollower_go/internal/redis"
	"linefollower_go/internal/vision"
	"linefollower_go/internal/websocket"
	"linefollower_go/pkg/logger"
)

// Version é a versão anunciada em /info e no mDNS
const Version = discovery.Version

// Server encapsula o servidor HTTP, o loop de controle e os serviços de
// telemetria
type Server struct {
	config           *config.Config
	httpServer       *http.Server
	router           *http.ServeMux
	loop             *control.Service
	redisService     *redis.Service
	plcService       *plc.PLCService
	wsHub            *websocket.Hub
	discoveryService *discovery.DiscoveryService
	serverInfo       ServerInfo
}

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	StartTime    time.Time
	Connections  int
	Version      string
	WebSocketURL string
	APIURL       string
	RunID        string
}

// NewServer cria o sensor e os atuadores configurados e monta o servidor
// em volta do loop de controle
func NewServer(cfg *config.Config) (*Server, error) {
	sensor, err := vision.NewSensor(cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar sensor: %w", err)
	}

	act, err := actuator.New(cfg.Steering, cfg.Drive)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar atuadores: %w", err)
	}

	loop, err := control.NewService(cfg, sensor, act, nil)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar loop de controle: %w", err)
	}

	return newServer(cfg, loop)
}

// newServer monta o servidor em volta de um loop já criado
func newServer(cfg *config.Config, loop *control.Service) (*Server, error) {
	server := &Server{
		config: cfg,
		loop:   loop,
		router: http.NewServeMux(),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   Version,
			Port:      cfg.Server.Port,
			RunID:     loop.RunID(),
		},
	}

	ip, err := discovery.LocalIP()
	if err != nil {
		logger.Warnf("Não foi possível determinar o IP local: %v", err)
		ip = "localhost"
	}
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	if err := server.initComponents(); err != nil {
		return nil, err
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// initComponents cria os serviços de telemetria e os registra no loop
func (s *Server) initComponents() error {
	s.wsHub = websocket.NewHub()
	s.wsHub.SetProvider(s.loop)
	go s.wsHub.Run()

	redisService, err := redis.NewService(s.config.Redis)
	if err != nil {
		return fmt.Errorf("erro ao inicializar serviço Redis: %w", err)
	}
	s.redisService = redisService

	s.loop.RegisterCycleHandler(s.wsHub.BroadcastCycle)
	s.loop.RegisterStatusHandler(s.wsHub.BroadcastStatus)
	if s.config.Redis.Enabled {
		s.loop.RegisterCycleHandler(s.redisService.HandleCycle)
		s.loop.RegisterStatusHandler(s.redisService.HandleStatus)
	}

	if s.config.PLC.Enabled {
		s.plcService = plc.NewPLCService(s.config.PLC)
		s.loop.RegisterCycleHandler(s.plcService.HandleCycle)
	}

	if s.config.Server.Discovery {
		s.discoveryService = discovery.NewDiscoveryService(s.config.Server.Port, s.loop.RunID())
	}

	return nil
}

// Start inicia o loop de controle, os serviços auxiliares e o servidor HTTP.
// Uma falha de inicialização do loop é retornada sem subir o HTTP.
func (s *Server) Start() error {
	if err := s.loop.Start(); err != nil {
		return err
	}

	if s.discoveryService != nil {
		if err := s.discoveryService.Start(); err != nil {
			logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
		}
	}

	if s.plcService != nil {
		if err := s.plcService.Start(); err != nil {
			logger.Errorf("Erro ao iniciar serviço PLC: %v", err)
		}
	}

	s.logServerInfo()

	logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
	}

	return nil
}

// Shutdown para o veículo primeiro e depois encerra os demais serviços
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Iniciando shutdown do servidor")

	// o loop para antes do HTTP para que a tração seja zerada o quanto antes
	s.loop.Stop()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("servidor HTTP: %w", err))
	}

	if s.discoveryService != nil {
		s.discoveryService.Stop()
	}

	if s.plcService != nil {
		s.plcService.Shutdown()
	}

	if s.wsHub != nil {
		s.wsHub.Shutdown()
	}

	if s.redisService != nil {
		s.redisService.Shutdown()
	}

	logger.Info("Shutdown completo")
	return errors.Join(errs...)
}

// Handler retorna o handler HTTP raiz
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	info := s.serverInfo
	info.Connections = s.wsHub.ClientCount()
	return info
}

// logServerInfo exibe informações do servidor no log
func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("              Line Follower Server             ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Execução: %s", s.serverInfo.RunID)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	if s.discoveryService != nil {
		logger.Infof("mDNS: %s.%s.%s",
			s.discoveryService.GetInstanceName(),
			discovery.ServiceType,
			discovery.ServiceDomain)
	}
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}
