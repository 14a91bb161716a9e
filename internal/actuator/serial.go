package actuator

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"linefollower_go/internal/config"
	"linefollower_go/pkg/logger"
)

// PortOpener abre a porta serial da ponte de atuadores
type PortOpener func(address string, baudRate int) (io.WriteCloser, error)

func openSerialPort(address string, baudRate int) (io.WriteCloser, error) {
	return serial.Open(address, &serial.Mode{BaudRate: baudRate})
}

// SerialBridge fala com o microcontrolador que gera o PWM do servo e dos
// motores. Protocolo de texto, um comando por linha:
//
//	SERVO <pino> <minUs> <maxUs>
//	PWM <canal> <pino> <freq> <bits>
//	S <ângulo>
//	M <esquerdo> <direito>
type SerialBridge struct {
	steer  config.SteeringConfig
	drive  config.DriveConfig
	limits Limits
	open   PortOpener

	port  io.WriteCloser
	mutex sync.Mutex
}

// NewSerialBridge cria a ponte serial; a porta só é aberta em Setup
func NewSerialBridge(steer config.SteeringConfig, drive config.DriveConfig) *SerialBridge {
	return NewSerialBridgeWithOpener(steer, drive, openSerialPort)
}

// NewSerialBridgeWithOpener permite injetar a porta (testes)
func NewSerialBridgeWithOpener(steer config.SteeringConfig, drive config.DriveConfig, open PortOpener) *SerialBridge {
	return &SerialBridge{
		steer:  steer,
		drive:  drive,
		limits: LimitsFrom(steer, drive),
		open:   open,
	}
}

// Setup abre a porta e envia a configuração de hardware
func (b *SerialBridge) Setup() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.port == nil {
		port, err := b.open(b.steer.Address, b.steer.BaudRate)
		if err != nil {
			return fmt.Errorf("erro ao abrir ponte serial %s: %w", b.steer.Address, err)
		}
		b.port = port
		logger.Infof("Ponte de atuadores aberta em %s", b.steer.Address)
	}

	if err := b.send("SERVO %d %d %d", b.steer.Pin, b.steer.ServoMinUs, b.steer.ServoMaxUs); err != nil {
		return err
	}
	if err := b.send("PWM %d %d %d %d", b.drive.ChannelA, b.drive.PinA, b.drive.PWMFrequency, b.drive.PWMResolution); err != nil {
		return err
	}
	return b.send("PWM %d %d %d %d", b.drive.ChannelB, b.drive.PinB, b.drive.PWMFrequency, b.drive.PWMResolution)
}

// SetAngle posiciona o servo de direção
func (b *SerialBridge) SetAngle(angle int) error {
	if err := b.limits.checkAngle(angle); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.send("S %d", angle)
}

// SetSpeed aplica o PWM aos dois motores
func (b *SerialBridge) SetSpeed(left, right int) error {
	if err := b.limits.checkSpeed(left, right); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.send("M %d %d", left, right)
}

// Stop zera o PWM dos motores
func (b *SerialBridge) Stop() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.send("M 0 0")
}

// Close fecha a porta serial
func (b *SerialBridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	logger.Info("Ponte de atuadores fechada")
	return err
}

func (b *SerialBridge) send(format string, args ...interface{}) error {
	if b.port == nil {
		return fmt.Errorf("ponte serial não aberta")
	}
	if _, err := fmt.Fprintf(b.port, format+"\n", args...); err != nil {
		return fmt.Errorf("erro ao escrever na ponte serial: %w", err)
	}
	return nil
}
