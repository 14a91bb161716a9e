package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linefollower_go/internal/config"
	"linefollower_go/internal/models"
	"linefollower_go/internal/tracking"
	"linefollower_go/pkg/logger"
	"linefollower_go/pkg/mathutil"
)

// RunCycle executa um ciclo completo: leitura, desvio, PID, velocidade e
// atuação. Falhas do sensor e linha ausente levam ao estado Lost; o ciclo
// nunca é pulado deixando comandos antigos aplicados indefinidamente.
func (s *Service) RunCycle(ctx context.Context, now time.Time) models.CycleRecord {
	s.cycleLock.Lock()
	defer s.cycleLock.Unlock()

	s.cycle++
	rec := models.CycleRecord{
		RunID:     s.runID,
		Cycle:     s.cycle,
		Timestamp: now,
	}

	var actErr error
	obs, reason := s.observe(ctx, &rec)
	if reason == "" {
		actErr = s.track(now, obs, &rec)
	} else {
		actErr = s.lose(now, reason, &rec)
	}

	s.lastSteering = rec.Steering
	s.lastDrive = rec.Drive

	s.finish(rec, actErr)
	return rec
}

// observe lê o sensor e extrai a geometria. Retorna o motivo quando não
// há observação válida.
func (s *Service) observe(ctx context.Context, rec *models.CycleRecord) (models.LineObservation, string) {
	seg, found, err := s.sensor.PrimaryLine(ctx)
	if err != nil {
		s.sensorFailed(err)
		return models.LineObservation{}, models.ReasonSensorError
	}
	s.sensorRecovered()

	if found {
		rec.Segment = &seg
	}

	obs, err := tracking.ExtractFrom(seg, found, s.config.TargetColumn)
	switch {
	case err == nil:
		return obs, ""
	case errors.Is(err, tracking.ErrDegenerateGeometry):
		return obs, models.ReasonDegenerateGeometry
	default:
		return obs, models.ReasonNoObservation
	}
}

func (s *Service) track(now time.Time, obs models.LineObservation, rec *models.CycleRecord) error {
	if s.state == models.StateLost {
		logger.Infof("Linha reencontrada após %d ciclos (desvio: %d)", s.missed, obs.Deviation)
	}
	s.state = models.StateTracking
	s.missed = 0
	s.seen = true
	s.lastDeviation = obs.Deviation

	out := s.pid.Update(obs.Deviation, now)
	drive := s.mapper.Map(obs.Deviation)

	rec.State = models.StateTracking
	rec.Observation = &obs
	rec.Terms = out.Terms()
	rec.Steering = out.Angle
	rec.Drive = drive

	return s.apply(out.Angle, drive)
}

// lose aplica a política de linha perdida. Durante os ciclos de tolerância
// os últimos comandos são reafirmados e o estado continua Tracking.
func (s *Service) lose(now time.Time, reason string, rec *models.CycleRecord) error {
	s.missed++
	rec.LostCycles = s.missed

	if s.state == models.StateTracking && s.missed <= s.config.LostGraceCycles {
		rec.State = models.StateTracking
		rec.Reason = models.ReasonGrace
		rec.Steering = s.lastSteering
		rec.Drive = s.lastDrive
		logger.Debugf("Linha ausente (%s), tolerância %d/%d", reason, s.missed, s.config.LostGraceCycles)
		return s.apply(s.lastSteering, s.lastDrive)
	}

	if s.state == models.StateTracking {
		logger.Warnf("Linha perdida (%s), aplicando política %s", reason, s.config.LostPolicy)
	}
	s.state = models.StateLost
	rec.State = models.StateLost
	rec.Reason = reason

	// o PID fica zerado enquanto a linha está perdida; ao reencontrar,
	// o primeiro dt é de um ciclo
	s.pid.Reset(now)

	switch s.config.LostPolicy {
	case config.LostPolicyHoldLast:
		drive := s.lastDrive - s.config.LostSpeedStep
		if drive < s.config.LostSafeSpeed {
			drive = min(s.config.LostSafeSpeed, s.lastDrive)
		}
		rec.Steering = s.lastSteering
		rec.Drive = drive
		return s.apply(rec.Steering, drive)

	default:
		rec.Steering = s.searchAngle()
		rec.Drive = 0
		var errs []error
		if err := s.actuator.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("parar tração: %w", err))
		}
		if err := s.actuator.SetAngle(rec.Steering); err != nil {
			errs = append(errs, fmt.Errorf("direção: %w", err))
		}
		return errors.Join(errs...)
	}
}

// searchAngle vira para o lado em que a linha foi vista por último
func (s *Service) searchAngle() int {
	if !s.seen {
		return s.steering.Center
	}
	angle := s.steering.Center - mathutil.Sign(s.lastDeviation)*s.config.MaxTurnAngle
	return mathutil.Constrain(angle, s.steering.Min, s.steering.Max)
}

// apply envia direção e tração; os dois comandos são tentados mesmo se um falhar
func (s *Service) apply(angle, drive int) error {
	var errs []error
	if err := s.actuator.SetAngle(angle); err != nil {
		errs = append(errs, fmt.Errorf("direção: %w", err))
	}
	if err := s.actuator.SetSpeed(drive, drive); err != nil {
		errs = append(errs, fmt.Errorf("tração: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Service) sensorFailed(err error) {
	s.consecutiveErrors++
	logger.Errorf("Erro ao ler o sensor: %v. Tentativa %d", err, s.consecutiveErrors)

	if s.consecutiveErrors == s.config.MaxConsecutiveErrors+1 {
		s.updateStatus(StatusSensorFault, err.Error())
	}

	s.mutex.Lock()
	s.status.ErrorCount = s.consecutiveErrors
	s.status.LastError = err.Error()
	s.mutex.Unlock()
}

func (s *Service) sensorRecovered() {
	if s.consecutiveErrors == 0 {
		return
	}
	logger.Infof("Comunicação com o sensor restaurada após %d tentativas", s.consecutiveErrors)
	faulted := s.consecutiveErrors > s.config.MaxConsecutiveErrors
	s.consecutiveErrors = 0

	s.mutex.Lock()
	s.status.ErrorCount = 0
	s.mutex.Unlock()

	if faulted {
		s.updateStatus(StatusOK, "")
	}
}

// finish publica o ciclo: estado interno, diagnóstico e handlers
func (s *Service) finish(rec models.CycleRecord, actErr error) {
	if actErr != nil {
		logger.Errorf("Erro ao aplicar comandos no ciclo %d: %v", rec.Cycle, actErr)
	}

	controller := s.pid.State()

	s.mutex.Lock()
	stored := rec
	s.lastRecord = &stored
	s.lastController = controller
	s.status.State = rec.State
	s.status.TotalCycles = rec.Cycle
	if actErr != nil {
		s.status.LastError = actErr.Error()
	}
	s.mutex.Unlock()

	if every := s.config.DiagnosticsEvery; every > 0 && rec.Cycle%uint64(every) == 0 && logger.IsDebugEnabled() {
		logger.Debug(FormatDiagnostic(rec))
	}

	s.notifyCycleHandlers(rec)
}

// FormatDiagnostic gera a linha de diagnóstico legível de um ciclo
func FormatDiagnostic(rec models.CycleRecord) string {
	if rec.Observation == nil {
		return fmt.Sprintf("Linha ausente (%s) | Ciclos perdidos: %d | Steering: %d | Motor PWM: %d",
			rec.Reason, rec.LostCycles, rec.Steering, rec.Drive)
	}
	o := rec.Observation
	return fmt.Sprintf("Start X: %d | End X: %d | Mid X: %d | Deviation: %d | Steering: %d | Motor PWM: %d",
		o.XStart, o.XEnd, o.XMid, o.Deviation, rec.Steering, rec.Drive)
}
