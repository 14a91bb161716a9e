package websocket

import (
	"encoding/json"
	"time"

	"linefollower_go/internal/models"
)

// NewCycleMessage cria uma mensagem com o registro de um ciclo
func NewCycleMessage(rec models.CycleRecord) *models.CycleMessage {
	return &models.CycleMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeCycle,
			Timestamp: time.Now(),
		},
		Cycle: rec,
	}
}

// NewStatusMessage cria uma nova mensagem de status
func NewStatusMessage(status models.LoopStatus) *models.StatusMessage {
	return &models.StatusMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeStatus,
			Timestamp: time.Now(),
		},
		Status: status,
	}
}

// NewControllerMessage cria uma mensagem com o estado do PID
func NewControllerMessage(state models.ControllerState) *models.ControllerMessage {
	return &models.ControllerMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeController,
			Timestamp: time.Now(),
		},
		Controller: state,
	}
}

// NewWelcomeMessage cria a mensagem de boas-vindas de um cliente
func NewWelcomeMessage(clientID string) models.WebSocketMessage {
	return models.WebSocketMessage{
		Type:      TypeWelcome,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message":  "Conectado ao controlador do seguidor de linha",
			"clientId": clientID,
		},
	}
}

// NewPingMessage cria um ping de aplicação
func NewPingMessage() *models.PingMessage {
	now := time.Now()
	return &models.PingMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypePing,
			Timestamp: now,
		},
		Time: now.UnixMilli(),
	}
}

// NewErrorMessage cria uma nova mensagem de erro
func NewErrorMessage(message string, errorCode string) models.WebSocketMessage {
	return models.WebSocketMessage{
		Type:      TypeError,
		Timestamp: time.Now(),
		Error:     message,
		Data: map[string]string{
			"code": errorCode,
		},
	}
}

// SerializeMessage serializa uma mensagem para JSON
func SerializeMessage(message interface{}) ([]byte, error) {
	return json.Marshal(message)
}

// ParseClientCommand analisa um comando recebido do cliente
func ParseClientCommand(data []byte) (models.CommandMessage, error) {
	var command models.CommandMessage
	err := json.Unmarshal(data, &command)
	return command, err
}

// CreatePongResponse cria uma resposta para um ping do cliente
func CreatePongResponse(pingTime int64) *models.PongMessage {
	now := time.Now()
	return &models.PongMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypePong,
			Timestamp: now,
		},
		Time:       pingTime,
		ServerTime: now.UnixMilli(),
	}
}

// pingTime extrai o campo "time" dos parâmetros de um ping
func pingTime(params interface{}) int64 {
	if m, ok := params.(map[string]interface{}); ok {
		if v, ok := m["time"].(float64); ok {
			return int64(v)
		}
	}
	return 0
}
