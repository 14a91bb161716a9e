package plc

import (
	"linefollower_go/internal/models"
	"linefollower_go/pkg/utils"
)

// Layout do DB espelhado (big-endian, como o S7 armazena):
//
//	0  INT   ângulo de direção (graus)
//	2  INT   tração (PWM)
//	4  INT   desvio (pixels, 0 quando perdido)
//	6  BOOL  bit 0 = seguindo a linha, bit 1 = falha de sensor
//	8  REAL  integral do PID
//	12 DINT  contador de ciclos (32 bits baixos)
const (
	offsetSteering  = 0
	offsetDrive     = 2
	offsetDeviation = 4
	offsetFlags     = 6
	offsetIntegral  = 8
	offsetCycle     = 12

	blockSize = 16
)

const (
	flagTracking    = 1 << 0
	flagSensorFault = 1 << 1
)

// encodeCycle monta o bloco do DB para um registro de ciclo
func encodeCycle(rec models.CycleRecord) []byte {
	buf := make([]byte, blockSize)

	utils.PutInt(buf[offsetSteering:], rec.Steering)
	utils.PutInt(buf[offsetDrive:], rec.Drive)
	if rec.Observation != nil {
		utils.PutInt(buf[offsetDeviation:], rec.Observation.Deviation)
	}

	var flags byte
	if rec.State == models.StateTracking {
		flags |= flagTracking
	}
	if rec.Reason == models.ReasonSensorError {
		flags |= flagSensorFault
	}
	buf[offsetFlags] = flags

	if rec.Terms != nil {
		utils.PutReal(buf[offsetIntegral:], rec.Terms.Integral)
	}
	utils.PutDInt(buf[offsetCycle:], uint32(rec.Cycle))

	return buf
}
