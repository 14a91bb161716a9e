package vision

import (
	"context"
	"sync"

	"linefollower_go/internal/models"
)

// SimFrame é um quadro roteirizado do sensor simulado
type SimFrame struct {
	Segment models.LineSegment
	Found   bool
	Err     error
}

// SimSensor repete um roteiro fixo de quadros, em ordem e em loop.
// Usado em dry runs e testes.
type SimSensor struct {
	frames []SimFrame
	next   int
	opened bool
	mutex  sync.Mutex
}

// NewSimSensor cria um sensor simulado com o roteiro informado
func NewSimSensor(frames []SimFrame) *SimSensor {
	return &SimSensor{frames: frames}
}

func (s *SimSensor) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.opened = true
	return ctx.Err()
}

func (s *SimSensor) PrimaryLine(ctx context.Context) (models.LineSegment, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.LineSegment{}, false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.frames) == 0 {
		return models.LineSegment{}, false, nil
	}
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame.Segment, frame.Found, frame.Err
}

func (s *SimSensor) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.opened = false
	return nil
}

// DefaultTrack é um percurso em S com uma curta perda de linha no meio.
// Coordenadas no quadro 79x52 da câmera de linha.
func DefaultTrack() []SimFrame {
	var frames []SimFrame
	offsets := []int{0, 2, 5, 9, 12, 9, 5, 2, 0, -2, -5, -9, -12, -9, -5, -2}
	for _, off := range offsets {
		frames = append(frames, SimFrame{
			Segment: models.LineSegment{X0: 39, Y0: 51, X1: 39 + 2*off, Y1: 0},
			Found:   true,
		})
	}
	frames = append(frames, SimFrame{}, SimFrame{}, SimFrame{})
	return frames
}
