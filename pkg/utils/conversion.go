package utils

import (
	"encoding/binary"
	"math"
)

// Conversões para os tipos do S7 (big-endian)

// PutInt grava um INT (16 bits) saturando valores fora da faixa
func PutInt(dst []byte, val int) {
	if val > math.MaxInt16 {
		val = math.MaxInt16
	} else if val < math.MinInt16 {
		val = math.MinInt16
	}
	binary.BigEndian.PutUint16(dst, uint16(int16(val)))
}

// IntAt lê um INT (16 bits)
func IntAt(src []byte) int {
	return int(int16(binary.BigEndian.Uint16(src)))
}

// PutReal grava um REAL (float32 IEEE 754)
func PutReal(dst []byte, val float64) {
	binary.BigEndian.PutUint32(dst, math.Float32bits(float32(val)))
}

// RealAt lê um REAL (float32 IEEE 754)
func RealAt(src []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(src))
}

// PutDInt grava um DINT (32 bits)
func PutDInt(dst []byte, val uint32) {
	binary.BigEndian.PutUint32(dst, val)
}

// DIntAt lê um DINT (32 bits)
func DIntAt(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}
