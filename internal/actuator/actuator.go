// Package actuator envia os comandos de direção e tração para o hardware.
package actuator

import (
	"fmt"

	"linefollower_go/internal/config"
	"linefollower_go/pkg/mathutil"
)

// Steering recebe o ângulo de direção em graus
type Steering interface {
	SetAngle(angle int) error
}

// Drive recebe o comando PWM dos dois motores de tração
type Drive interface {
	SetSpeed(left, right int) error
	Stop() error
}

// Actuator reúne direção e tração de um mesmo barramento
type Actuator interface {
	Steering
	Drive
	// Setup configura servo e canais PWM antes do primeiro ciclo
	Setup() error
	Close() error
}

// Limits são as faixas aceitas pelos comandos
type Limits struct {
	AngleMin, AngleMax int
	MaxPWM             int
	ServoMinUs         int
	ServoMaxUs         int
}

// LimitsFrom deriva os limites da configuração
func LimitsFrom(steer config.SteeringConfig, drive config.DriveConfig) Limits {
	return Limits{
		AngleMin:   steer.Min,
		AngleMax:   steer.Max,
		MaxPWM:     drive.MaxPWM(),
		ServoMinUs: steer.ServoMinUs,
		ServoMaxUs: steer.ServoMaxUs,
	}
}

func (l Limits) checkAngle(angle int) error {
	if angle < l.AngleMin || angle > l.AngleMax {
		return fmt.Errorf("ângulo fora da faixa [%d, %d]: %d", l.AngleMin, l.AngleMax, angle)
	}
	return nil
}

func (l Limits) checkSpeed(left, right int) error {
	for _, v := range []int{left, right} {
		if v < 0 || v > l.MaxPWM {
			return fmt.Errorf("PWM fora da faixa [0, %d]: %d", l.MaxPWM, v)
		}
	}
	return nil
}

// PulseWidth converte o ângulo em largura de pulso (µs) do servo,
// como o write(angle) da biblioteca de servo do ESP32
func (l Limits) PulseWidth(angle int) int {
	angle = mathutil.Constrain(angle, l.AngleMin, l.AngleMax)
	if l.AngleMax == l.AngleMin {
		return l.ServoMinUs
	}
	return mathutil.MapRange(angle, l.AngleMin, l.AngleMax, l.ServoMinUs, l.ServoMaxUs)
}

// New cria o atuador do transporte configurado
func New(steer config.SteeringConfig, drive config.DriveConfig) (Actuator, error) {
	switch steer.Transport {
	case config.TransportSerial:
		return NewSerialBridge(steer, drive), nil
	case config.TransportLog:
		return NewLogBridge(LimitsFrom(steer, drive)), nil
	default:
		return nil, fmt.Errorf("transporte de atuador não suportado: %s", steer.Transport)
	}
}
