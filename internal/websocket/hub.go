package websocket

import (
	"context"
	"sync"
	"time"

	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
	"linefollower_go/pkg/mathutil"
)

// Tipos de mensagem
const (
	TypeWelcome    = "welcome"
	TypeCycle      = "cycle"
	TypeStatus     = "status"
	TypeController = "controller"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Comandos aceitos dos clientes
const (
	CommandPing          = "ping"
	CommandGetStatus     = "get_status"
	CommandGetController = "get_controller"
)

// StatusProvider fornece o estado atual do loop de controle
type StatusProvider interface {
	GetStatus() models.LoopStatus
	GetControllerState() models.ControllerState
	GetLastCycle() *models.CycleRecord
}

// Hub gerencia todas as conexões WebSocket e distribuição de mensagens
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	commands   chan models.ClientCommand
	mu         sync.RWMutex

	provider StatusProvider

	// Último ciclo enviado, para limitar a taxa de envio
	lastCycle     *models.CycleRecord
	lastCycleTime time.Time
	minInterval   time.Duration
	cycleLock     sync.Mutex

	stats struct {
		totalMessages      int64
		droppedMessages    int64
		totalClients       int64
		messagesPerSecond  float64
		lastStatsReset     time.Time
		messagesSinceReset int64
	}
	statsLock sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub cria uma nova instância do Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 256),
		commands:    make(chan models.ClientCommand, 100),
		minInterval: 50 * time.Millisecond,
		ctx:         ctx,
		cancel:      cancel,
	}
	h.stats.lastStatsReset = time.Now()
	return h
}

// SetProvider define a fonte de status usada pelos comandos dos clientes
func (h *Hub) SetProvider(p StatusProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.provider = p
}

func (h *Hub) getProvider() StatusProvider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.provider
}

// SetMinInterval define o intervalo mínimo entre ciclos enviados sem mudança relevante
func (h *Hub) SetMinInterval(d time.Duration) {
	h.cycleLock.Lock()
	defer h.cycleLock.Unlock()
	h.minInterval = d
}

// Run inicia o loop principal do hub para gerenciar clientes e mensagens
func (h *Hub) Run() {
	logger.Info("Iniciando WebSocket Hub")

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			logger.Info("Encerrando WebSocket Hub")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			logger.Infof("Novo cliente WebSocket conectado. ID: %s. Total: %d", client.id, clientCount)

			h.statsLock.Lock()
			h.stats.totalClients++
			h.statsLock.Unlock()

			go h.sendInitialDataToClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Infof("Cliente WebSocket desconectado. ID: %s. Total: %d", client.id, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.statsLock.Lock()
			h.stats.totalMessages++
			h.stats.messagesSinceReset++
			h.statsLock.Unlock()

			h.mu.RLock()
			deadClients := make([]*Client, 0, 4)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// canal do cliente cheio
					deadClients = append(deadClients, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range deadClients {
				h.removeClient(client)
			}

		case cmd := <-h.commands:
			go h.handleClientCommand(cmd)

		case <-statsTicker.C:
			h.logStats()

		case <-pingTicker.C:
			h.sendPingToAllClients()
		}
	}
}

// BroadcastCycle envia um ciclo a todos os clientes. Ciclos mais próximos
// que minInterval só são enviados se o estado ou a direção mudarem.
func (h *Hub) BroadcastCycle(rec models.CycleRecord) {
	if !h.shouldSendCycle(rec) {
		return
	}
	h.enqueue(NewCycleMessage(rec), "ciclo")
}

func (h *Hub) shouldSendCycle(rec models.CycleRecord) bool {
	h.cycleLock.Lock()
	defer h.cycleLock.Unlock()

	send := true
	if h.lastCycle != nil && time.Since(h.lastCycleTime) < h.minInterval {
		sameState := h.lastCycle.State == rec.State
		smallTurn := mathutil.Abs(h.lastCycle.Steering-rec.Steering) < 5
		send = !(sameState && smallTurn)
	}
	if send {
		h.lastCycle = &rec
		h.lastCycleTime = time.Now()
	}
	return send
}

// BroadcastStatus envia atualização de status para todos os clientes
func (h *Hub) BroadcastStatus(status models.LoopStatus) {
	h.enqueue(NewStatusMessage(status), "status")
}

// enqueue serializa e coloca a mensagem na fila de broadcast sem bloquear
// o chamador; com a fila cheia a mensagem é descartada
func (h *Hub) enqueue(message interface{}, kind string) {
	jsonMessage, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem de "+kind, err)
		return
	}

	select {
	case h.broadcast <- jsonMessage:
	default:
		h.statsLock.Lock()
		h.stats.droppedMessages++
		h.statsLock.Unlock()
	}
}

// handleClientCommand processa comandos recebidos dos clientes
func (h *Hub) handleClientCommand(cmd models.ClientCommand) {
	logger.Debugf("Comando recebido do cliente %s: %s", cmd.ClientID, cmd.Command)

	provider := h.getProvider()

	switch cmd.Command {
	case CommandPing:
		h.sendToClient(cmd.ClientID, CreatePongResponse(pingTime(cmd.Params)))
	case CommandGetStatus:
		if provider == nil {
			h.sendToClient(cmd.ClientID, NewErrorMessage("Controle indisponível", "unavailable"))
			return
		}
		h.sendToClient(cmd.ClientID, NewStatusMessage(provider.GetStatus()))
	case CommandGetController:
		if provider == nil {
			h.sendToClient(cmd.ClientID, NewErrorMessage("Controle indisponível", "unavailable"))
			return
		}
		h.sendToClient(cmd.ClientID, NewControllerMessage(provider.GetControllerState()))
	default:
		logger.Warnf("Comando desconhecido: %s", cmd.Command)
		h.sendToClient(cmd.ClientID, NewErrorMessage("Comando desconhecido: "+cmd.Command, "unknown_command"))
	}
}

// sendToClient envia uma mensagem apenas para o cliente indicado
func (h *Hub) sendToClient(clientID string, message interface{}) {
	jsonMsg, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar resposta", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.id != clientID {
			continue
		}
		select {
		case client.send <- jsonMsg:
		default:
			logger.Warnf("Buffer do cliente %s cheio, resposta descartada", clientID)
		}
		return
	}
}

// sendInitialDataToClient envia boas-vindas, status e último ciclo
func (h *Hub) sendInitialDataToClient(client *Client) {
	welcome := NewWelcomeMessage(client.id)
	h.sendToClient(client.id, welcome)

	provider := h.getProvider()
	if provider == nil {
		return
	}
	h.sendToClient(client.id, NewStatusMessage(provider.GetStatus()))
	if rec := provider.GetLastCycle(); rec != nil {
		h.sendToClient(client.id, NewCycleMessage(*rec))
	}
}

// Shutdown encerra graciosamente o hub
func (h *Hub) Shutdown() {
	h.cancel()
	time.Sleep(100 * time.Millisecond)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Warnf("Cliente WebSocket %s removido (buffer cheio)", client.id)
	}
}

// closeAllClients fecha todas as conexões dos clientes
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("Fechando todas as conexões de clientes WebSocket")
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount retorna o número atual de clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) logStats() {
	h.statsLock.Lock()
	elapsed := time.Since(h.stats.lastStatsReset).Seconds()
	if elapsed > 0 {
		h.stats.messagesPerSecond = float64(h.stats.messagesSinceReset) / elapsed
	}
	h.stats.messagesSinceReset = 0
	h.stats.lastStatsReset = time.Now()
	mps := h.stats.messagesPerSecond
	total := h.stats.totalMessages
	dropped := h.stats.droppedMessages
	h.statsLock.Unlock()

	logger.Infof("Estatísticas WebSocket: %d clientes, %.2f msgs/seg, total: %d mensagens, descartadas: %d",
		h.ClientCount(), mps, total, dropped)
}

// sendPingToAllClients envia ping de aplicação para todos os clientes
func (h *Hub) sendPingToAllClients() {
	if h.ClientCount() == 0 {
		return
	}
	h.enqueue(NewPingMessage(), "ping")
}
