package control

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"linefollower_go/internal/models"
)

// cycleStats mantém as durações dos últimos ciclos em segundos
type cycleStats struct {
	mu        sync.Mutex
	total     uint64
	durations []float64
	next      int
	size      int
}

func newCycleStats(size int) *cycleStats {
	return &cycleStats{size: size, durations: make([]float64, 0, size)}
}

func (c *cycleStats) record(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if len(c.durations) < c.size {
		c.durations = append(c.durations, d.Seconds())
		return
	}
	c.durations[c.next] = d.Seconds()
	c.next = (c.next + 1) % c.size
}

func (c *cycleStats) snapshot() models.LoopStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.LoopStats{TotalCycles: c.total}
	if len(c.durations) == 0 {
		return st
	}

	mean, std := stat.MeanStdDev(c.durations, nil)
	if len(c.durations) < 2 {
		std = 0
	}
	st.Mean = seconds(mean)
	st.StdDev = seconds(std)
	st.Max = seconds(floats.Max(c.durations))
	return st
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
