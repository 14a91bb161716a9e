package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
)

// ErrReadTimeout indica que nenhuma linha completa chegou dentro do prazo
var ErrReadTimeout = errors.New("timeout aguardando quadro do sensor")

// PortOpener abre a porta serial do sensor
type PortOpener func(address string, baudRate int, timeout time.Duration) (io.ReadWriteCloser, error)

// OpenSerialPort abre uma porta real via go.bug.st/serial
func OpenSerialPort(address string, baudRate int, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(address, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// SerialSensor conversa com a ponte do sensor por uma porta serial.
// Cada requisição é o comando seguido de '\n'; a resposta é uma linha.
type SerialSensor struct {
	address  string
	baudRate int
	command  string
	timeout  time.Duration
	open     PortOpener

	port    io.ReadWriteCloser
	pending []byte
	buf     []byte
	// stale indica que uma resposta atrasada pode chegar antes da próxima
	stale bool
	mutex sync.Mutex
}

// NewSerialSensor cria um sensor serial
func NewSerialSensor(address string, baudRate int, command string, timeout time.Duration) *SerialSensor {
	return NewSerialSensorWithOpener(address, baudRate, command, timeout, OpenSerialPort)
}

// NewSerialSensorWithOpener permite injetar a abertura da porta (testes)
func NewSerialSensorWithOpener(address string, baudRate int, command string, timeout time.Duration, open PortOpener) *SerialSensor {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &SerialSensor{
		address:  address,
		baudRate: baudRate,
		command:  command,
		timeout:  timeout,
		open:     open,
		buf:      make([]byte, 256),
	}
}

// Open abre a porta serial
func (s *SerialSensor) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port, err := s.open(s.address, s.baudRate, s.timeout)
	if err != nil {
		return fmt.Errorf("erro ao abrir porta serial %s: %w", s.address, err)
	}
	s.port = port
	s.pending = s.pending[:0]
	s.stale = false
	logger.Infof("Sensor serial aberto em %s (%d baud)", s.address, s.baudRate)
	return nil
}

// PrimaryLine envia o comando e lê uma linha de resposta
func (s *SerialSensor) PrimaryLine(ctx context.Context) (models.LineSegment, bool, error) {
	if err := s.Open(ctx); err != nil {
		return models.LineSegment{}, false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port == nil {
		return models.LineSegment{}, false, fmt.Errorf("porta serial %s fechada", s.address)
	}
	if s.stale {
		s.discard()
	}

	if _, err := io.WriteString(s.port, s.command+"\n"); err != nil {
		s.drop()
		return models.LineSegment{}, false, fmt.Errorf("erro ao enviar comando: %w", err)
	}

	line, err := s.readLine(ctx)
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// a resposta deste pedido ainda pode chegar e não pode ser lida como a do próximo
		s.pending = s.pending[:0]
		s.stale = true
		return models.LineSegment{}, false, err
	}
	if err != nil {
		s.drop()
		return models.LineSegment{}, false, err
	}
	return DecodeLineFrame(line)
}

// inputResetter é implementado pelas portas de go.bug.st/serial
type inputResetter interface {
	ResetInputBuffer() error
}

// discard descarta o que restou na entrada antes de um novo pedido. Lê até a
// porta ficar vazia (0, nil) ou o prazo de leitura acabar.
func (s *SerialSensor) discard() {
	s.pending = s.pending[:0]
	s.stale = false

	if r, ok := s.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			logger.Warnf("Erro ao limpar buffer de entrada serial: %v", err)
		}
	}

	dropped := 0
	deadline := time.Now().Add(s.timeout)
	for time.Now().Before(deadline) {
		n, err := s.port.Read(s.buf)
		dropped += n
		if n == 0 || err != nil {
			break
		}
	}
	if dropped > 0 {
		logger.Debugf("Sensor serial: %d bytes atrasados descartados", dropped)
	}
}

// drop fecha a porta após erro de E/S; o próximo PrimaryLine reabre
func (s *SerialSensor) drop() {
	if s.port != nil {
		s.port.Close()
	}
	s.port = nil
	s.pending = s.pending[:0]
	s.stale = false
}

// readLine acumula bytes até '\n'. A porta real retorna (0, nil) no
// timeout de leitura, então o prazo é controlado aqui.
func (s *SerialSensor) readLine(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.timeout)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(s.pending[:i]), "\r")
			s.pending = s.pending[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrReadTimeout
		}

		n, err := s.port.Read(s.buf)
		s.pending = append(s.pending, s.buf[:n]...)
		if err != nil {
			return "", fmt.Errorf("erro ao ler resposta: %w", err)
		}
	}
}

// Close fecha a porta serial
func (s *SerialSensor) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	logger.Info("Porta serial do sensor fechada")
	return err
}
