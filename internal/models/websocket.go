package models

import "time"

// WebSocketMessage representa a estrutura base de todas as mensagens WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`            // Tipo da mensagem: "cycle", "status", "controller", etc.
	Timestamp time.Time   `json:"timestamp"`       // Timestamp da mensagem
	Data      interface{} `json:"data,omitempty"`  // Dados adicionais específicos do tipo
	Error     string      `json:"error,omitempty"` // Mensagem de erro, se houver
}

// CycleMessage transporta um registro de ciclo para os clientes
type CycleMessage struct {
	WebSocketMessage
	Cycle CycleRecord `json:"cycle"`
}

// StatusMessage é uma mensagem específica para atualizações de status
type StatusMessage struct {
	WebSocketMessage
	Status LoopStatus `json:"status"`
}

// ControllerMessage transporta o estado do controlador PID
type ControllerMessage struct {
	WebSocketMessage
	Controller ControllerState `json:"controller"`
}

// CommandMessage é uma mensagem de comando do cliente para o servidor
type CommandMessage struct {
	Type   string      `json:"type"`             // Tipo de comando: "get_status", "get_controller", "ping"
	Params interface{} `json:"params,omitempty"` // Parâmetros adicionais
	ID     string      `json:"id,omitempty"`     // ID opcional para correlacionar solicitações/respostas
}

// ClientCommand representa um comando enviado pelo cliente
type ClientCommand struct {
	Command   string      `json:"command"`
	Params    interface{} `json:"params,omitempty"`
	RequestID string      `json:"-"`
	ClientID  string      `json:"-"` // Usado internamente, não enviado no JSON
}

// PongMessage representa um pong enviado pelo servidor
type PongMessage struct {
	WebSocketMessage
	Time       int64 `json:"time"`       // Timestamp original do ping
	ServerTime int64 `json:"serverTime"` // Timestamp do servidor em milissegundos
}

// PingMessage é o ping de aplicação enviado periodicamente pelo servidor
type PingMessage struct {
	WebSocketMessage
	Time int64 `json:"time"`
}
