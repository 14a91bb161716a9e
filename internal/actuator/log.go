package actuator

import (
	"sync"

	"linefollower_go/pkg/logger"
)

// LogBridge é o atuador de dry run: valida e registra os comandos sem hardware
type LogBridge struct {
	limits Limits

	angle   int
	left    int
	right   int
	stopped bool
	writes  int
	mutex   sync.Mutex
}

// NewLogBridge cria um atuador de dry run
func NewLogBridge(limits Limits) *LogBridge {
	return &LogBridge{limits: limits, stopped: true}
}

func (b *LogBridge) Setup() error {
	logger.Info("Atuadores em modo dry run (log)")
	return nil
}

func (b *LogBridge) SetAngle(angle int) error {
	if err := b.limits.checkAngle(angle); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.angle = angle
	b.writes++
	logger.Debugf("Direção: %d° (%d µs)", angle, b.limits.PulseWidth(angle))
	return nil
}

func (b *LogBridge) SetSpeed(left, right int) error {
	if err := b.limits.checkSpeed(left, right); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.left, b.right = left, right
	b.stopped = left == 0 && right == 0
	b.writes++
	logger.Debugf("Tração: esquerdo=%d direito=%d", left, right)
	return nil
}

func (b *LogBridge) Stop() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.left, b.right = 0, 0
	b.stopped = true
	b.writes++
	logger.Debug("Tração parada")
	return nil
}

func (b *LogBridge) Close() error { return nil }

// Last retorna o último ângulo e PWM aplicados
func (b *LogBridge) Last() (angle, left, right int, stopped bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.angle, b.left, b.right, b.stopped
}

// Writes conta os comandos aceitos
func (b *LogBridge) Writes() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.writes
}
