// Package tracking converte o segmento de linha do sensor em um desvio lateral.
package tracking

import (
	"errors"

	"linefollower_go/internal/models"
)

var (
	// ErrNoObservation indica que o sensor não reportou linha no ciclo
	ErrNoObservation = errors.New("nenhuma linha detectada")

	// ErrDegenerateGeometry indica um segmento horizontal (y0 == y1),
	// para o qual a interpolação do ponto médio não é definida
	ErrDegenerateGeometry = errors.New("segmento degenerado: y0 == y1")
)

// Extract calcula a coluna do ponto médio vertical do segmento e o desvio
// em relação a targetColumn. Usa aritmética inteira com divisão truncada.
func Extract(seg models.LineSegment, targetColumn int) (models.LineObservation, error) {
	if seg.Y1 == seg.Y0 {
		return models.LineObservation{}, ErrDegenerateGeometry
	}

	yMid := (seg.Y0 + seg.Y1) / 2
	xMid := seg.X0 + (seg.X1-seg.X0)*(yMid-seg.Y0)/(seg.Y1-seg.Y0)

	return models.LineObservation{
		XStart:    seg.X0,
		XEnd:      seg.X1,
		XMid:      xMid,
		Deviation: xMid - targetColumn,
	}, nil
}

// ExtractFrom aplica Extract ao resultado de uma leitura do sensor,
// devolvendo ErrNoObservation quando não há segmento
func ExtractFrom(seg models.LineSegment, found bool, targetColumn int) (models.LineObservation, error) {
	if !found {
		return models.LineObservation{}, ErrNoObservation
	}
	return Extract(seg, targetColumn)
}

// IsLost informa se err representa um ciclo sem observação válida
func IsLost(err error) bool {
	return errors.Is(err, ErrNoObservation) || errors.Is(err, ErrDegenerateGeometry)
}
