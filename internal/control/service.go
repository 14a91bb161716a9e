// Package control executa o loop de seguimento de linha: lê o sensor,
// calcula o desvio, a direção (PID) e a tração, e envia os comandos aos
// atuadores uma vez por ciclo.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"linefollower_go/internal/actuator"
	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
	"linefollower_go/internal/pid"
	"linefollower_go/internal/speed"
	"linefollower_go/internal/timeutil"
	"linefollower_go/internal/vision"
	"linefollower_go/pkg/logger"
	"linefollower_go/pkg/utils"
)

// ErrStartup envolve qualquer falha de inicialização. O loop não é iniciado.
var ErrStartup = errors.New("falha na inicialização do controle")

// Status do loop
const (
	StatusInitializing = "initializing"
	StatusOK           = "ok"
	StatusSensorFault  = "falha_sensor"
	StatusStopped      = "parado"
)

// CycleHandler recebe o registro de cada ciclo
type CycleHandler func(record models.CycleRecord)

// StatusHandler recebe cada mudança de status
type StatusHandler func(status models.LoopStatus)

// Service é o orquestrador do loop de controle
type Service struct {
	sensor   vision.Sensor
	actuator actuator.Actuator
	pid      *pid.Controller
	mapper   *speed.Mapper
	clock    timeutil.Clock
	config   config.ControlConfig
	steering config.SteeringConfig
	runID    string

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mutex   sync.RWMutex

	status         models.LoopStatus
	lastRecord     *models.CycleRecord
	lastController models.ControllerState

	cycleHandlers  []CycleHandler
	statusHandlers []StatusHandler
	handlersLock   sync.RWMutex

	// estado do ciclo, protegido por cycleLock
	cycleLock         sync.Mutex
	cycle             uint64
	state             models.TrackingState
	missed            int
	seen              bool
	lastDeviation     int
	lastSteering      int
	lastDrive         int
	consecutiveErrors int

	stats *cycleStats
}

// NewService cria o orquestrador. clock nil usa o relógio real.
func NewService(cfg *config.Config, sensor vision.Sensor, act actuator.Actuator, clock timeutil.Clock) (*Service, error) {
	mapper, err := speed.NewMapper(cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar mapeador de velocidade: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &Service{
		sensor:       sensor,
		actuator:     act,
		pid:          pid.NewController(pid.ConfigFrom(cfg.PID, cfg.Steering)),
		mapper:       mapper,
		clock:        clock,
		config:       cfg.Control,
		steering:     cfg.Steering,
		runID:        uuid.NewString(),
		state:        models.StateTracking,
		lastSteering: cfg.Steering.Center,
		stats:        newCycleStats(100),
		status: models.LoopStatus{
			Status:     StatusInitializing,
			State:      models.StateTracking,
			Timestamp:  clock.Now(),
			LostPolicy: cfg.Control.LostPolicy,
		},
	}
	return s, nil
}

// RunID identifica esta execução do controlador
func (s *Service) RunID() string {
	return s.runID
}

// Start abre o sensor, centraliza a direção, para a tração e inicia o loop.
// Qualquer falha aqui é fatal e retorna um erro que envolve ErrStartup.
func (s *Service) Start() error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return nil
	}

	logger.Infof("Iniciando loop de controle (ciclo: %v, política: %s, alvo: %d)",
		s.config.CycleInterval.Duration, s.config.LostPolicy, s.config.TargetColumn)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.setup(ctx); err != nil {
		s.mutex.Unlock()
		cancel()
		return err
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	done := s.done
	s.mutex.Unlock()

	s.updateStatus(StatusOK, "")

	ticker := s.clock.NewTicker(s.config.CycleInterval.Duration)
	go s.loop(ctx, ticker, done)
	go s.monitorStats(ctx)

	return nil
}

func (s *Service) setup(ctx context.Context) error {
	if err := s.sensor.Open(ctx); err != nil {
		return fmt.Errorf("%w: sensor: %w", ErrStartup, err)
	}
	if err := s.actuator.Setup(); err != nil {
		s.closeSensor()
		return fmt.Errorf("%w: atuadores: %w", ErrStartup, err)
	}
	if err := s.actuator.SetAngle(s.steering.Center); err != nil {
		s.closeSensor()
		return fmt.Errorf("%w: centralizar direção: %w", ErrStartup, err)
	}
	if err := s.actuator.Stop(); err != nil {
		s.closeSensor()
		return fmt.Errorf("%w: parar tração: %w", ErrStartup, err)
	}

	s.cycleLock.Lock()
	s.lastSteering = s.steering.Center
	s.lastDrive = 0
	s.pid.Seed(s.clock.Now())
	s.cycleLock.Unlock()
	return nil
}

// closeSensor libera o sensor quando a inicialização falha depois de abri-lo
func (s *Service) closeSensor() {
	if err := s.sensor.Close(); err != nil {
		logger.Warnf("Erro ao fechar sensor: %v", err)
	}
}

// Stop encerra o loop, para a tração e libera sensor e atuadores
func (s *Service) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	logger.Info("Parando loop de controle")
	cancel, done := s.cancel, s.done
	s.running = false
	s.mutex.Unlock()

	cancel()
	<-done

	if err := s.actuator.Stop(); err != nil {
		logger.Error("Erro ao parar tração", err)
	}
	if err := s.sensor.Close(); err != nil {
		logger.Error("Erro ao fechar sensor", err)
	}
	if err := s.actuator.Close(); err != nil {
		logger.Error("Erro ao fechar atuadores", err)
	}

	s.updateStatus(StatusStopped, "")

	s.logPerformanceStats()
}

// IsRunning verifica se o loop está em execução
func (s *Service) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// RegisterCycleHandler registra uma função para receber cada ciclo
func (s *Service) RegisterCycleHandler(handler CycleHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.cycleHandlers = append(s.cycleHandlers, handler)
}

// RegisterStatusHandler registra uma função para receber mudanças de status
func (s *Service) RegisterStatusHandler(handler StatusHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.statusHandlers = append(s.statusHandlers, handler)
}

// GetStatus retorna o status atual do loop
func (s *Service) GetStatus() models.LoopStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// GetLastCycle retorna o último ciclo executado (nil antes do primeiro)
func (s *Service) GetLastCycle() *models.CycleRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.lastRecord == nil {
		return nil
	}
	rec := *s.lastRecord
	return &rec
}

// GetControllerState retorna o estado do PID após o último ciclo
func (s *Service) GetControllerState() models.ControllerState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastController
}

// GetStats retorna as estatísticas de tempo de ciclo
func (s *Service) GetStats() models.LoopStats {
	return s.stats.snapshot()
}

// loop executa um ciclo a cada tick até o contexto ser cancelado
func (s *Service) loop(ctx context.Context, ticker timeutil.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			start := time.Now()
			s.RunCycle(ctx, s.clock.Now())
			s.stats.record(time.Since(start))
		}
	}
}

// monitorStats registra estatísticas de desempenho a cada minuto
func (s *Service) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logPerformanceStats()
		}
	}
}

func (s *Service) logPerformanceStats() {
	st := s.stats.snapshot()
	logger.Infof("Estatísticas de desempenho: %d ciclos totais, duração média: %s, desvio padrão: %s, máxima: %s",
		st.TotalCycles, utils.FormatMillis(st.Mean), utils.FormatMillis(st.StdDev), utils.FormatMillis(st.Max))
}

// updateStatus atualiza o status e notifica os handlers
func (s *Service) updateStatus(status, errorMsg string) {
	s.mutex.Lock()
	s.status.Status = status
	s.status.Timestamp = s.clock.Now()
	s.status.LastError = errorMsg
	current := s.status
	s.mutex.Unlock()

	if status != StatusOK && status != StatusStopped {
		logger.Warnf("Status do controle alterado para %s: %s", status, errorMsg)
	}
	s.notifyStatusHandlers(current)
}

func (s *Service) notifyStatusHandlers(status models.LoopStatus) {
	s.handlersLock.RLock()
	handlers := s.statusHandlers
	s.handlersLock.RUnlock()

	for _, handler := range handlers {
		handler(status)
	}
}

func (s *Service) notifyCycleHandlers(record models.CycleRecord) {
	s.handlersLock.RLock()
	handlers := s.cycleHandlers
	s.handlersLock.RUnlock()

	for _, handler := range handlers {
		handler(record)
	}
}
