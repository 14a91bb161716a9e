package vision

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
)

// TCPSensor consulta o sensor por TCP com comandos entre STX/ETX
type TCPSensor struct {
	conn      net.Conn
	address   string
	command   string
	timeout   time.Duration
	connected bool
	mutex     sync.Mutex
}

// NewTCPSensor cria um cliente TCP para o sensor em address (host:porta)
func NewTCPSensor(address, command string, timeout time.Duration) *TCPSensor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCPSensor{
		address: address,
		command: command,
		timeout: timeout,
	}
}

// Open estabelece a conexão com o sensor
func (s *TCPSensor) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connect(ctx)
}

func (s *TCPSensor) connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	logger.Infof("Tentando conectar ao sensor em %s...", s.address)

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao sensor: %w", err)
	}

	s.conn = conn
	s.connected = true
	logger.Infof("Conectado ao sensor em %s", s.address)
	return nil
}

// PrimaryLine solicita um quadro e decodifica o segmento principal.
// Uma falha de leitura derruba a conexão; o próximo ciclo reconecta.
func (s *TCPSensor) PrimaryLine(ctx context.Context) (models.LineSegment, bool, error) {
	response, err := s.sendCommand(ctx)
	if err != nil {
		return models.LineSegment{}, false, err
	}
	return DecodeLineFrame(response)
}

func (s *TCPSensor) sendCommand(ctx context.Context) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.connect(ctx); err != nil {
		return "", err
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)

	// STX (0x02) e ETX (0x03) delimitam o comando
	if _, err := fmt.Fprintf(s.conn, "\x02%s\x03", s.command); err != nil {
		s.drop()
		return "", fmt.Errorf("erro ao enviar comando: %w", err)
	}

	buffer := make([]byte, 1024)
	n, err := s.conn.Read(buffer)
	if err != nil {
		s.drop()
		return "", fmt.Errorf("erro ao ler resposta: %w", err)
	}

	return string(buffer[:n]), nil
}

func (s *TCPSensor) drop() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = nil
	s.connected = false
}

// IsConnected verifica se o cliente está conectado
func (s *TCPSensor) IsConnected() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connected
}

// Close fecha a conexão com o sensor
func (s *TCPSensor) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.connected = false
	logger.Info("Conexão com o sensor fechada")
	return err
}
