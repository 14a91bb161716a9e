package pid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefollower_go/internal/config"
)

func testConfig() Config {
	c := config.Default()
	return ConfigFrom(c.PID, c.Steering)
}

func TestStepCentered(t *testing.T) {
	out, next := Step(testConfig(), State{}, 0, 0.02)

	assert.Equal(t, 90, out.Angle)
	assert.Zero(t, next.Integral)
	assert.Zero(t, next.PreviousError)
}

func TestStepTerms(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		e        int
		dt       float64
		angle    int
		integral float64
		terms    [3]float64
	}{
		{"large error skips integral", State{}, 11, 0.02, 62, 0, [3]float64{11, 0, 16.5}},
		{"small error accumulates", State{PreviousError: 5}, 5, 0.1, 84, 0.5, [3]float64{5, 0.25, 0}},
		{"negative error steers right", State{PreviousError: -5}, -5, 0.1, 95, -0.5, [3]float64{-5, -0.25, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, next := Step(testConfig(), tt.state, tt.e, tt.dt)

			assert.Equal(t, tt.angle, out.Angle)
			assert.InDelta(t, tt.terms[0], out.P, 1e-9)
			assert.InDelta(t, tt.terms[1], out.I, 1e-9)
			assert.InDelta(t, tt.terms[2], out.D, 1e-9)
			assert.InDelta(t, tt.integral, next.Integral, 1e-9)
			assert.Equal(t, tt.e, next.PreviousError)
		})
	}
}

func TestIntegralGating(t *testing.T) {
	cfg := testConfig()
	state := State{Integral: 2, PreviousError: 20}

	for _, e := range []int{10, 20, -15, 40, -10} {
		_, state = Step(cfg, state, e, 0.05)
		assert.Equal(t, 2.0, state.Integral, "error %d must not touch the integral", e)
	}
}

func TestIntegralReset(t *testing.T) {
	cfg := testConfig()

	for _, e := range []int{-2, -1, 0, 1, 2} {
		_, next := Step(cfg, State{Integral: 4.5, PreviousError: 8}, e, 0.5)
		assert.Zero(t, next.Integral, "error %d", e)
	}

	// 3 fica fora do reset e acumula
	_, next := Step(cfg, State{Integral: 1}, 3, 0.5)
	assert.InDelta(t, 2.5, next.Integral, 1e-9)
}

func TestIntegralClamp(t *testing.T) {
	cfg := testConfig()

	state := State{}
	for n := 0; n < 100; n++ {
		_, state = Step(cfg, state, 9, 1)
		require.LessOrEqual(t, state.Integral, cfg.IntegralLimit)
	}
	assert.Equal(t, cfg.IntegralLimit, state.Integral)

	state = State{}
	for n := 0; n < 100; n++ {
		_, state = Step(cfg, state, -9, 1)
		require.GreaterOrEqual(t, state.Integral, -cfg.IntegralLimit)
	}
	assert.Equal(t, -cfg.IntegralLimit, state.Integral)
}

func TestAngleStaysInRange(t *testing.T) {
	cfg := testConfig()

	for _, e := range []int{-100000, -500, -39, -1, 0, 1, 39, 500, 100000} {
		for _, dt := range []float64{1e-6, 0.001, 0.02, 1, 60} {
			for _, prev := range []int{-1000, 0, 1000} {
				out, _ := Step(cfg, State{Integral: 5, PreviousError: prev}, e, dt)
				require.GreaterOrEqual(t, out.Angle, cfg.Min)
				require.LessOrEqual(t, out.Angle, cfg.Max)
			}
		}
	}

	out, _ := Step(cfg, State{}, 1000, 0.02)
	assert.Equal(t, 0, out.Angle)
	out, _ = Step(cfg, State{}, -1000, 0.02)
	assert.Equal(t, 180, out.Angle)
}

func TestStepIsDeterministic(t *testing.T) {
	cfg := testConfig()
	state := State{Integral: 1.25, PreviousError: -4}

	first, firstState := Step(cfg, state, 6, 0.017)
	for n := 0; n < 10; n++ {
		out, next := Step(cfg, state, 6, 0.017)
		assert.Equal(t, first, out)
		assert.Equal(t, firstState, next)
	}
}

func TestControllerFirstUpdateUsesEpsilon(t *testing.T) {
	c := NewController(testConfig())
	now := time.Unix(1700000000, 0)

	out := c.Update(2, now)

	assert.True(t, out.DtClamped)
	assert.InDelta(t, 0.001, out.Dt, 1e-12)
	assert.Equal(t, now, c.State().LastUpdate)
	assert.Equal(t, 2, c.State().PreviousError)
}

func TestControllerSeededUsesElapsed(t *testing.T) {
	c := NewController(testConfig())
	now := time.Unix(1700000000, 0)
	c.Seed(now)

	out := c.Update(5, now.Add(20*time.Millisecond))

	assert.False(t, out.DtClamped)
	assert.InDelta(t, 0.02, out.Dt, 1e-9)
	assert.InDelta(t, 0.1, c.State().Integral, 1e-9)
}

func TestControllerNonPositiveDt(t *testing.T) {
	c := NewController(testConfig())
	now := time.Unix(1700000000, 0)
	c.Seed(now)

	out := c.Update(1, now)
	assert.True(t, out.DtClamped)

	out = c.Update(1, now.Add(-time.Second))
	assert.True(t, out.DtClamped)
	assert.InDelta(t, 0.001, out.Dt, 1e-12)
}

func TestControllerReset(t *testing.T) {
	c := NewController(testConfig())
	start := time.Unix(1700000000, 0)
	c.Seed(start)
	c.Update(8, start.Add(100*time.Millisecond))
	c.Update(7, start.Add(200*time.Millisecond))
	require.NotZero(t, c.State().Integral)

	later := start.Add(time.Second)
	c.Reset(later)

	state := c.State()
	assert.Zero(t, state.Integral)
	assert.Zero(t, state.PreviousError)
	assert.Equal(t, later, state.LastUpdate)
}

func TestControllerMatchesStep(t *testing.T) {
	cfg := testConfig()
	c := NewController(cfg)
	start := time.Unix(1700000000, 0)
	c.Seed(start)

	errors := []int{12, 9, 6, 4, 2, -1, -6}
	state := State{}
	for n, e := range errors {
		now := start.Add(time.Duration(n+1) * 25 * time.Millisecond)
		got := c.Update(e, now)

		want, next := Step(cfg, state, e, 0.025)
		state = next
		assert.Equal(t, want.Angle, got.Angle, "cycle %d", n)
		assert.InDelta(t, state.Integral, c.State().Integral, 1e-9)
	}
}
