// Package speed converte a magnitude do desvio em comando de tração.
package speed

import (
	"fmt"

	"linefollower_go/internal/config"
	"linefollower_go/pkg/mathutil"
)

// Mapper mapeia |desvio| de [DeviationMin, DeviationMax] para
// [MaxSpeed, MinSpeed] e satura o resultado. Não guarda estado.
type Mapper struct {
	deviationMin int
	deviationMax int
	maxSpeed     int
	minSpeed     int
}

// NewMapper cria um mapeador a partir da configuração
func NewMapper(cfg config.SpeedConfig) (*Mapper, error) {
	if cfg.DeviationMax == cfg.DeviationMin {
		return nil, fmt.Errorf("faixa de desvio vazia: %d..%d", cfg.DeviationMin, cfg.DeviationMax)
	}
	return &Mapper{
		deviationMin: cfg.DeviationMin,
		deviationMax: cfg.DeviationMax,
		maxSpeed:     cfg.MaxSpeed,
		minSpeed:     cfg.MinSpeed,
	}, nil
}

// Map retorna o comando de tração para o desvio informado (o sinal é ignorado)
func (m *Mapper) Map(deviation int) int {
	raw := mathutil.MapRange(mathutil.Abs(deviation), m.deviationMin, m.deviationMax, m.maxSpeed, m.minSpeed)
	return mathutil.Constrain(raw, m.Floor(), m.Ceiling())
}

// Floor é o menor comando que Map pode produzir
func (m *Mapper) Floor() int {
	return min(m.minSpeed, m.maxSpeed)
}

// Ceiling é o maior comando que Map pode produzir
func (m *Mapper) Ceiling() int {
	return max(m.minSpeed, m.maxSpeed)
}
