package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesCarConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 39, cfg.Control.TargetColumn)
	assert.Equal(t, 45, cfg.Control.MaxTurnAngle)
	assert.Equal(t, 1.0, cfg.PID.Kp)
	assert.Equal(t, 0.5, cfg.PID.Ki)
	assert.Equal(t, 0.03, cfg.PID.Kd)
	assert.Equal(t, 10, cfg.PID.IntegralGate)
	assert.Equal(t, 3, cfg.PID.IntegralReset)
	assert.Equal(t, 5.0, cfg.PID.IntegralLimit)
	assert.Equal(t, 4095, cfg.Speed.MaxSpeed)
	assert.Equal(t, 4000, cfg.Speed.MinSpeed)
	assert.Equal(t, 4095, cfg.Drive.MaxPWM())
	assert.Equal(t, 90, cfg.Steering.Center)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "control": {"targetColumn": 42, "cycleInterval": "50ms", "lostPolicy": "hold_last"},
  "pid": {"kp": 2.5, "dtEpsilon": "2ms"},
  "redis": {"enabled": false}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Control.TargetColumn)
	assert.Equal(t, 50*time.Millisecond, cfg.Control.CycleInterval.Duration)
	assert.Equal(t, LostPolicyHoldLast, cfg.Control.LostPolicy)
	assert.Equal(t, 2.5, cfg.PID.Kp)
	assert.Equal(t, 2*time.Millisecond, cfg.PID.DtEpsilon.Duration)
	assert.False(t, cfg.Redis.Enabled)
	// campos ausentes mantêm o padrão
	assert.Equal(t, 0.5, cfg.PID.Ki)
	assert.Equal(t, 45, cfg.Control.MaxTurnAngle)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pid": {"kx": 1}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"LF_TARGET_COLUMN":  "50",
		"LF_KP":             "0.75",
		"LF_LOST_POLICY":    LostPolicyHoldLast,
		"LF_REDIS_ENABLED":  "false",
		"LF_SENSOR_ADDRESS": "10.0.0.2:2111",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := getDefaultConfig()
	require.NoError(t, applyEnvironmentOverrides(&cfg, lookup))

	assert.Equal(t, 50, cfg.Control.TargetColumn)
	assert.Equal(t, 0.75, cfg.PID.Kp)
	assert.Equal(t, LostPolicyHoldLast, cfg.Control.LostPolicy)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "10.0.0.2:2111", cfg.Vision.Address)
}

func TestEnvironmentOverridesRejectBadNumbers(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "LF_KD" {
			return "abc", true
		}
		return "", false
	}
	cfg := getDefaultConfig()
	assert.Error(t, applyEnvironmentOverrides(&cfg, lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"reset above gate", func(c *Config) { c.PID.IntegralReset = 11 }},
		{"empty speed range", func(c *Config) { c.Speed.DeviationMax = c.Speed.DeviationMin }},
		{"unknown policy", func(c *Config) { c.Control.LostPolicy = "spin" }},
		{"center outside range", func(c *Config) { c.Steering.Center = 200 }},
		{"zero cycle", func(c *Config) { c.Control.CycleInterval = Duration{} }},
		{"zero epsilon", func(c *Config) { c.PID.DtEpsilon = Duration{} }},
		{"unknown sensor transport", func(c *Config) { c.Vision.Transport = "usb" }},
		{"negative grace", func(c *Config) { c.Control.LostGraceCycles = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getDefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"150ms"`)))
	assert.Equal(t, 150*time.Millisecond, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000`)))
	assert.Equal(t, time.Millisecond, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))

	out, err := Duration{2 * time.Second}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
