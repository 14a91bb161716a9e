package speed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/config"
)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(config.Default().Speed)
	require.NoError(t, err)
	return m
}

func TestMapKnownPoints(t *testing.T) {
	m := newTestMapper(t)

	tests := []struct {
		deviation int
		want      int
	}{
		{0, 4095},
		{1, 4093},
		{20, 4048},
		{-20, 4048},
		{39, 4003},
		{40, 4000},
		{41, 4000},
		{-500, 4000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Map(tt.deviation), "deviation %d", tt.deviation)
	}
}

func TestMapIsMonotonic(t *testing.T) {
	m := newTestMapper(t)

	prev := m.Map(0)
	for d := 1; d <= 40; d++ {
		cur := m.Map(d)
		require.LessOrEqual(t, cur, prev, "deviation %d", d)
		prev = cur
	}
}

func TestMapStaysInRange(t *testing.T) {
	m := newTestMapper(t)

	for d := -1000; d <= 1000; d += 7 {
		got := m.Map(d)
		require.GreaterOrEqual(t, got, 4000)
		require.LessOrEqual(t, got, 4095)
	}
}

func TestNewMapperRejectsEmptyRange(t *testing.T) {
	_, err := NewMapper(config.SpeedConfig{DeviationMin: 10, DeviationMax: 10, MaxSpeed: 100, MinSpeed: 0})
	assert.Error(t, err)
}
