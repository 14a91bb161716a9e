package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
)

// Séries com histórico em conjunto ordenado
const (
	SeriesDeviation = "deviation"
	SeriesSteering  = "steering"
	SeriesDrive     = "drive"
)

const (
	// recentCyclesSize é o tamanho da lista de ciclos recentes
	recentCyclesSize = 100
	// writeQueueSize limita os ciclos à espera do escritor assíncrono
	writeQueueSize = 64
	// reconnectInterval é o intervalo mínimo entre tentativas de reconexão
	reconnectInterval = 5 * time.Second
)

// Service grava a telemetria do loop de controle no Redis.
// Ganhos e parâmetros nunca são persistidos aqui.
type Service struct {
	client    *redis.Client
	ctx       context.Context
	cancel    context.CancelFunc
	prefix    string
	config    config.RedisConfig
	connected bool
	mutex     sync.RWMutex

	lastRetry     time.Time
	retryInterval time.Duration

	// fila do escritor único usado com Async
	writes chan models.CycleRecord
	done   chan struct{}
}

// NewService cria um novo serviço Redis. Se o servidor não responder,
// o serviço fica em modo offline e as escritas são ignoradas.
func NewService(cfg config.RedisConfig) (*Service, error) {
	if !cfg.Enabled {
		logger.Info("Serviço Redis desabilitado por configuração")
		return &Service{config: cfg, prefix: cfg.Prefix}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	service := newService(cfg, client)

	if err := service.TestConnection(); err != nil {
		logger.Warnf("Aviso: %v. O Redis será utilizado em modo offline.", err)
		return service, nil
	}

	return service, nil
}

func newService(cfg config.RedisConfig, client *redis.Client) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1000
	}
	s := &Service{
		client:        client,
		ctx:           ctx,
		cancel:        cancel,
		prefix:        cfg.Prefix,
		config:        cfg,
		retryInterval: reconnectInterval,
	}
	if cfg.Async {
		s.writes = make(chan models.CycleRecord, writeQueueSize)
		s.done = make(chan struct{})
		go s.writer()
	}
	return s
}

// TestConnection testa a conexão com o Redis
func (s *Service) TestConnection() error {
	if !s.config.Enabled || s.client == nil {
		return fmt.Errorf("serviço Redis desabilitado")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	result, err := s.client.Ping(ctx).Result()
	if err != nil {
		s.mutex.Lock()
		s.connected = false
		s.lastRetry = time.Now()
		s.mutex.Unlock()
		return fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	logger.Infof("Conexão com o Redis estabelecida. Resposta: %s", result)
	s.setConnected(true)
	return nil
}

// IsConnected verifica se o serviço está conectado. Desconectado, tenta
// um novo ping no máximo uma vez por retryInterval.
func (s *Service) IsConnected() bool {
	s.mutex.RLock()
	connected, enabled := s.connected, s.config.Enabled
	s.mutex.RUnlock()

	if !enabled || s.client == nil {
		return false
	}
	if connected {
		return true
	}
	return s.reconnect()
}

func (s *Service) reconnect() bool {
	s.mutex.Lock()
	if s.ctx.Err() != nil || time.Since(s.lastRetry) < s.retryInterval {
		s.mutex.Unlock()
		return false
	}
	s.lastRetry = time.Now()
	s.mutex.Unlock()

	if err := s.TestConnection(); err != nil {
		logger.Debugf("Redis ainda indisponível: %v", err)
		return false
	}
	logger.Info("Conexão com o Redis restabelecida")
	return true
}

func (s *Service) setConnected(connected bool) {
	s.mutex.Lock()
	s.connected = connected
	s.mutex.Unlock()
}

func (s *Service) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// HandleCycle é o handler de ciclo registrado no loop de controle.
// Com Async o ciclo vai para a fila do escritor e nunca bloqueia o loop;
// com a fila cheia o ciclo é descartado.
func (s *Service) HandleCycle(rec models.CycleRecord) {
	if s.writes != nil {
		select {
		case s.writes <- rec:
		case <-s.ctx.Done():
		default:
			logger.Warnf("Fila do Redis cheia, ciclo %d descartado", rec.Cycle)
		}
		return
	}
	if !s.IsConnected() {
		return
	}
	if err := s.WriteCycle(rec); err != nil {
		logger.Errorf("Erro ao escrever ciclo no Redis: %v", err)
	}
}

// writer grava os ciclos da fila em ordem, um pipeline por vez
func (s *Service) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case rec := <-s.writes:
			if err := s.WriteCycle(rec); err != nil {
				logger.Errorf("Erro ao escrever ciclo no Redis: %v", err)
			}
		}
	}
}

// HandleStatus é o handler de status registrado no loop de controle
func (s *Service) HandleStatus(status models.LoopStatus) {
	if err := s.WriteStatus(status); err != nil {
		logger.Errorf("Erro ao escrever status no Redis: %v", err)
	}
}

// WriteCycle escreve o registro de um ciclo: valores atuais, históricos
// limitados e a lista de ciclos recentes
func (s *Service) WriteCycle(rec models.CycleRecord) error {
	if !s.IsConnected() {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("erro ao serializar ciclo: %w", err)
	}

	pipe := s.client.Pipeline()
	timestamp := rec.Timestamp.UnixMilli()

	pipe.Set(s.ctx, s.key("state"), string(rec.State), 0)
	pipe.Set(s.ctx, s.key("cycle"), rec.Cycle, 0)
	pipe.Set(s.ctx, s.key("timestamp"), timestamp, 0)
	pipe.Set(s.ctx, s.key("current"), string(data), 0)

	series := map[string]int{
		SeriesSteering: rec.Steering,
		SeriesDrive:    rec.Drive,
	}
	if rec.Observation != nil {
		series[SeriesDeviation] = rec.Observation.Deviation
	}

	for name, value := range series {
		pipe.Set(s.ctx, s.key(name), value, 0)

		histKey := s.key(name, "history")
		pipe.ZAdd(s.ctx, histKey, &redis.Z{
			Score:  float64(timestamp),
			Member: historyMember(rec.Cycle, value),
		})
		pipe.ZRemRangeByRank(s.ctx, histKey, 0, int64(-s.config.HistorySize-1))
	}

	cyclesKey := s.key("cycles")
	pipe.LPush(s.ctx, cyclesKey, string(data))
	pipe.LTrim(s.ctx, cyclesKey, 0, recentCyclesSize-1)

	if rec.State == models.StateLost {
		pipe.Incr(s.ctx, s.key("lost_cycles"))
	}

	if _, err := pipe.Exec(s.ctx); err != nil {
		s.setConnected(false)
		return fmt.Errorf("erro ao escrever ciclo no Redis: %w", err)
	}
	return nil
}

// WriteStatus escreve o status do loop no Redis
func (s *Service) WriteStatus(status models.LoopStatus) error {
	if !s.IsConnected() {
		return nil
	}

	pipe := s.client.Pipeline()

	pipe.Set(s.ctx, s.key("status"), status.Status, 0)
	pipe.Set(s.ctx, s.key("status", "timestamp"), status.Timestamp.UnixMilli(), 0)
	pipe.Set(s.ctx, s.key("lost_policy"), status.LostPolicy, 0)

	if status.LastError != "" {
		pipe.Set(s.ctx, s.key("ultimo_erro"), status.LastError, 0)
	}
	pipe.Set(s.ctx, s.key("erros_consecutivos"), status.ErrorCount, 0)

	if _, err := pipe.Exec(s.ctx); err != nil {
		s.setConnected(false)
		return fmt.Errorf("erro ao escrever status no Redis: %w", err)
	}
	return nil
}

// GetStatus obtém o último status gravado
func (s *Service) GetStatus() (*models.LoopStatus, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("Redis não conectado ou desabilitado")
	}

	statusCmd := s.client.Get(s.ctx, s.key("status"))
	if statusCmd.Err() != nil {
		return nil, fmt.Errorf("erro ao obter status: %w", statusCmd.Err())
	}

	status := &models.LoopStatus{
		Status:    statusCmd.Val(),
		Timestamp: time.Now(),
	}

	if ts, err := s.client.Get(s.ctx, s.key("status", "timestamp")).Int64(); err == nil {
		status.Timestamp = time.UnixMilli(ts)
	}
	if state, err := s.client.Get(s.ctx, s.key("state")).Result(); err == nil {
		status.State = models.TrackingState(state)
	}
	if cycle, err := s.client.Get(s.ctx, s.key("cycle")).Uint64(); err == nil {
		status.TotalCycles = cycle
	}
	if policy, err := s.client.Get(s.ctx, s.key("lost_policy")).Result(); err == nil {
		status.LostPolicy = policy
	}
	if lastErr, err := s.client.Get(s.ctx, s.key("ultimo_erro")).Result(); err == nil {
		status.LastError = lastErr
	}
	if count, err := s.client.Get(s.ctx, s.key("erros_consecutivos")).Int(); err == nil {
		status.ErrorCount = count
	}

	return status, nil
}

// GetCurrentCycle obtém o último ciclo gravado
func (s *Service) GetCurrentCycle() (*models.CycleRecord, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("Redis não conectado ou desabilitado")
	}

	data, err := s.client.Get(s.ctx, s.key("current")).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter ciclo atual: %w", err)
	}

	var rec models.CycleRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("erro ao decodificar ciclo atual: %w", err)
	}
	return &rec, nil
}

// GetRecentCycles obtém até limit ciclos, do mais recente ao mais antigo
func (s *Service) GetRecentCycles(limit int) ([]models.CycleRecord, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("Redis não conectado ou desabilitado")
	}
	if limit <= 0 || limit > recentCyclesSize {
		limit = recentCyclesSize
	}

	items, err := s.client.LRange(s.ctx, s.key("cycles"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter ciclos recentes: %w", err)
	}

	cycles := make([]models.CycleRecord, 0, len(items))
	for _, item := range items {
		var rec models.CycleRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		cycles = append(cycles, rec)
	}
	return cycles, nil
}

// GetHistory obtém o histórico de uma série (deviation, steering ou drive)
func (s *Service) GetHistory(series string) ([]models.HistoryPoint, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("Redis não conectado ou desabilitado")
	}

	switch series {
	case SeriesDeviation, SeriesSteering, SeriesDrive:
	default:
		return nil, fmt.Errorf("série inválida: %s", series)
	}

	results, err := s.client.ZRangeWithScores(s.ctx, s.key(series, "history"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter histórico de %s: %w", series, err)
	}

	history := make([]models.HistoryPoint, 0, len(results))
	for _, item := range results {
		member, ok := item.Member.(string)
		if !ok {
			continue
		}
		value, err := parseHistoryMember(member)
		if err != nil {
			continue
		}
		history = append(history, models.HistoryPoint{
			Value:     float64(value),
			Timestamp: time.UnixMilli(int64(item.Score)),
		})
	}
	return history, nil
}

// Shutdown encerra graciosamente o serviço Redis
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Errorf("Erro ao fechar conexão com Redis: %v", err)
		} else {
			logger.Info("Conexão com o Redis fechada")
		}
	}

	s.connected = false
}

// historyMember torna cada ponto único no conjunto ordenado; valores
// repetidos em ciclos diferentes não podem colapsar num único membro
func historyMember(cycle uint64, value int) string {
	return strconv.FormatUint(cycle, 10) + "|" + strconv.Itoa(value)
}

func parseHistoryMember(member string) (int, error) {
	_, value, ok := strings.Cut(member, "|")
	if !ok {
		return 0, fmt.Errorf("membro de histórico inválido: %q", member)
	}
	return strconv.Atoi(value)
}
