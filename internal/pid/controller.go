// Package pid implementa o controlador de direção PID com integral janelada.
//
// O integrador só acumula quando |erro| < IntegralGate, é zerado quando
// |erro| < IntegralReset e fica sempre limitado a ±IntegralLimit. O ângulo
// de saída é Center - (P + I + D), truncado e limitado a [Min, Max].
//
// O termo derivativo usa o dt bruto no denominador. Com dt muito pequeno
// ele pode gerar picos; o piso DtEpsilon e a saturação da saída os limitam.
package pid

import (
	"time"

	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
	"linefollower_go/pkg/mathutil"
)

// Config contém ganhos, limiares e faixa de saída do controlador
type Config struct {
	Kp, Ki, Kd    float64
	IntegralGate  int
	IntegralReset int
	IntegralLimit float64
	DtEpsilon     time.Duration

	Center, Min, Max int
}

// ConfigFrom monta a configuração do controlador a partir da configuração da aplicação
func ConfigFrom(p config.PIDConfig, s config.SteeringConfig) Config {
	return Config{
		Kp:            p.Kp,
		Ki:            p.Ki,
		Kd:            p.Kd,
		IntegralGate:  p.IntegralGate,
		IntegralReset: p.IntegralReset,
		IntegralLimit: p.IntegralLimit,
		DtEpsilon:     p.DtEpsilon.Duration,
		Center:        s.Center,
		Min:           s.Min,
		Max:           s.Max,
	}
}

// State é o estado numérico que a etapa PID consome e produz
type State struct {
	Integral      float64
	PreviousError int
}

// Output é o resultado de uma atualização
type Output struct {
	Angle     int
	P, I, D   float64
	Dt        float64 // segundos efetivamente usados
	DtClamped bool    // dt substituído por DtEpsilon
	Integral  float64 // acumulador após a atualização
	Unclamped float64 // Center - (P+I+D) antes da saturação
}

// Terms converte a saída no formato de telemetria
func (o Output) Terms() *models.PIDTerms {
	return &models.PIDTerms{P: o.P, I: o.I, D: o.D, Dt: o.Dt, Integral: o.Integral}
}

// Step executa uma etapa do PID. É uma função pura: dado
// (cfg, state, e, dt) o resultado é sempre o mesmo.
func Step(cfg Config, state State, e int, dt float64) (Output, State) {
	errf := float64(e)

	p := cfg.Kp * errf

	integral := state.Integral
	abs := mathutil.Abs(e)
	if abs < cfg.IntegralGate {
		integral += errf * dt
	}
	if abs < cfg.IntegralReset {
		integral = 0
	}
	integral = mathutil.Constrain(integral, -cfg.IntegralLimit, cfg.IntegralLimit)
	i := cfg.Ki * integral

	d := cfg.Kd * float64(e-state.PreviousError) / dt

	raw := float64(cfg.Center) - (p + i + d)
	// satura em float antes de converter para evitar overflow em int
	angle := int(mathutil.Constrain(raw, float64(cfg.Min), float64(cfg.Max)))

	out := Output{
		Angle:     angle,
		P:         p,
		I:         i,
		D:         d,
		Dt:        dt,
		Integral:  integral,
		Unclamped: raw,
	}
	return out, State{Integral: integral, PreviousError: e}
}

// Controller guarda o estado do PID entre ciclos. Não é seguro para uso
// concorrente; o loop de controle é o único dono.
type Controller struct {
	cfg        Config
	state      State
	lastUpdate time.Time
}

// NewController cria um controlador com estado zerado e timestamp não inicializado
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Config retorna a configuração em uso
func (c *Controller) Config() Config {
	return c.cfg
}

// Seed define o timestamp de referência, evitando um dt enorme no primeiro ciclo
func (c *Controller) Seed(now time.Time) {
	c.lastUpdate = now
}

// Reset zera integral e erro anterior e re-semeia o timestamp
func (c *Controller) Reset(now time.Time) {
	c.state = State{}
	c.lastUpdate = now
}

// Update calcula o ângulo de direção para o desvio atual
func (c *Controller) Update(deviation int, now time.Time) Output {
	dt, clamped := c.elapsed(now)

	out, next := Step(c.cfg, c.state, deviation, dt)
	out.DtClamped = clamped

	c.state = next
	c.lastUpdate = now
	return out
}

// State retorna uma cópia do estado persistente
func (c *Controller) State() models.ControllerState {
	return models.ControllerState{
		Integral:      c.state.Integral,
		PreviousError: c.state.PreviousError,
		LastUpdate:    c.lastUpdate,
	}
}

// elapsed retorna dt em segundos, substituindo por DtEpsilon quando o
// timestamp não foi inicializado ou o relógio não avançou
func (c *Controller) elapsed(now time.Time) (float64, bool) {
	eps := c.cfg.DtEpsilon.Seconds()
	if eps <= 0 {
		eps = time.Millisecond.Seconds()
	}
	if c.lastUpdate.IsZero() {
		return eps, true
	}
	dt := now.Sub(c.lastUpdate).Seconds()
	if dt <= 0 {
		return eps, true
	}
	return dt, false
}
