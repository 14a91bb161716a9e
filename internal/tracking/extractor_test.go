package tracking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/models"
)

func TestExtractDiagonalSegment(t *testing.T) {
	obs, err := Extract(models.LineSegment{X0: 0, Y0: 0, X1: 100, Y1: 100}, 39)
	require.NoError(t, err)

	assert.Equal(t, 0, obs.XStart)
	assert.Equal(t, 100, obs.XEnd)
	assert.Equal(t, 50, obs.XMid)
	assert.Equal(t, 11, obs.Deviation)
}

func TestExtractPixyFrame(t *testing.T) {
	tests := []struct {
		name    string
		seg     models.LineSegment
		wantMid int
		wantDev int
	}{
		{"vertical line on target", models.LineSegment{X0: 39, Y0: 51, X1: 39, Y1: 0}, 39, 0},
		{"leaning left", models.LineSegment{X0: 30, Y0: 51, X1: 10, Y1: 10}, 20, -19},
		{"reversed endpoints", models.LineSegment{X0: 100, Y0: 100, X1: 0, Y1: 0}, 50, 11},
		{"truncating division", models.LineSegment{X0: 0, Y0: 0, X1: 10, Y1: 3}, 3, -36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := Extract(tt.seg, 39)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMid, obs.XMid)
			assert.Equal(t, tt.wantDev, obs.Deviation)
		})
	}
}

func TestExtractDegenerateSegment(t *testing.T) {
	for _, x := range [][2]int{{0, 0}, {10, 70}, {-5, 5}} {
		t.Run(fmt.Sprintf("x0=%d,x1=%d", x[0], x[1]), func(t *testing.T) {
			_, err := Extract(models.LineSegment{X0: x[0], Y0: 20, X1: x[1], Y1: 20}, 39)
			assert.ErrorIs(t, err, ErrDegenerateGeometry)
			assert.True(t, IsLost(err))
		})
	}
}

func TestExtractFromMissingLine(t *testing.T) {
	_, err := ExtractFrom(models.LineSegment{X0: 1, Y0: 2, X1: 3, Y1: 4}, false, 39)
	assert.ErrorIs(t, err, ErrNoObservation)
	assert.True(t, IsLost(err))
	assert.False(t, IsLost(errors.New("serial timeout")))
}
