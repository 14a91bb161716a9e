// Package vision contém os clientes do sensor de visão que reporta o
// segmento de linha principal a cada ciclo.
package vision

import (
	"context"
	"fmt"

	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
)

// Sensor fornece o segmento principal detectado.
// PrimaryLine retorna found == false quando não há linha no quadro.
type Sensor interface {
	Open(ctx context.Context) error
	PrimaryLine(ctx context.Context) (models.LineSegment, bool, error)
	Close() error
}

// NewSensor cria o sensor de acordo com o transporte configurado
func NewSensor(cfg config.VisionConfig) (Sensor, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		return NewTCPSensor(cfg.Address, cfg.Command, cfg.ReadTimeout.Duration), nil
	case config.TransportSerial:
		return NewSerialSensor(cfg.Address, cfg.BaudRate, cfg.Command, cfg.ReadTimeout.Duration), nil
	case config.TransportSim:
		return NewSimSensor(DefaultTrack()), nil
	default:
		return nil, fmt.Errorf("transporte de sensor não suportado: %s", cfg.Transport)
	}
}
