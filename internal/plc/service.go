package plc

import (
	"context"
	"sync"
	"time"

	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
)

// PLCService espelha o último ciclo do loop de controle em um DB do PLC.
// O envio acontece na taxa configurada, independente da taxa do loop.
type PLCService struct {
	client      BlockWriter
	config      config.PLCConfig
	cancel      context.CancelFunc
	done        chan struct{}
	cycles      chan models.CycleRecord
	lastCycle   *models.CycleRecord
	lastWritten uint64
	written     bool
	writeErrors int
	mutex       sync.RWMutex
	running     bool
}

// NewPLCService cria um novo serviço de PLC
func NewPLCService(cfg config.PLCConfig) *PLCService {
	return newPLCService(cfg, NewS7Client(cfg))
}

func newPLCService(cfg config.PLCConfig, client BlockWriter) *PLCService {
	if cfg.UpdateRate.Duration <= 0 {
		cfg.UpdateRate.Duration = 100 * time.Millisecond
	}
	return &PLCService{
		client: client,
		config: cfg,
		cycles: make(chan models.CycleRecord, 10),
	}
}

// Start conecta ao PLC e inicia o envio periódico
func (s *PLCService) Start() error {
	if !s.config.Enabled {
		logger.Info("Serviço PLC desabilitado por configuração")
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	if err := s.client.Connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.runUpdateLoop(ctx, s.done)

	s.running = true
	logger.Infof("Serviço PLC iniciado (DB%d a cada %v)", s.config.DBNumber, s.config.UpdateRate.Duration)
	return nil
}

// Stop para o envio e desconecta do PLC
func (s *PLCService) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mutex.Unlock()

	<-done
	s.client.Disconnect()
	logger.Info("Serviço PLC parado")
}

// IsRunning verifica se o serviço está em execução
func (s *PLCService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// HandleCycle recebe cada ciclo do loop de controle. Nunca bloqueia.
func (s *PLCService) HandleCycle(rec models.CycleRecord) {
	if !s.IsRunning() {
		return
	}

	select {
	case s.cycles <- rec:
	default:
		logger.Warn("Canal de ciclos para PLC está cheio, descartando atualização")
	}
}

// runUpdateLoop guarda o ciclo mais recente e o envia a cada tick
func (s *PLCService) runUpdateLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.UpdateRate.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case rec := <-s.cycles:
			s.mutex.Lock()
			s.lastCycle = &rec
			s.mutex.Unlock()

		case <-ticker.C:
			s.flush()
		}
	}
}

// flush envia o último ciclo se ele ainda não foi escrito
func (s *PLCService) flush() {
	s.mutex.RLock()
	rec := s.lastCycle
	pending := rec != nil && (!s.written || rec.Cycle != s.lastWritten)
	s.mutex.RUnlock()

	if !pending {
		return
	}

	if err := s.client.WriteDataBlock(s.config.DBNumber, 0, encodeCycle(*rec)); err != nil {
		s.mutex.Lock()
		s.writeErrors++
		count := s.writeErrors
		s.mutex.Unlock()
		// só a primeira falha de uma sequência vai para o log
		if count == 1 {
			logger.Errorf("Erro ao escrever ciclo no PLC: %v", err)
		}
		return
	}

	s.mutex.Lock()
	if s.writeErrors > 0 {
		logger.Infof("Escrita no PLC restabelecida após %d falhas", s.writeErrors)
	}
	s.writeErrors = 0
	s.lastWritten = rec.Cycle
	s.written = true
	s.mutex.Unlock()
}

// Shutdown encerra graciosamente o serviço
func (s *PLCService) Shutdown() {
	s.Stop()
}
