// Package mathutil contém helpers numéricos genéricos usados pelo loop de controle.
package mathutil

import "golang.org/x/exp/constraints"

// Number agrupa os tipos numéricos aceitos pelos helpers
type Number interface {
	constraints.Integer | constraints.Float
}

// Constrain limita value ao intervalo [lo, hi]
func Constrain[T Number](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// MapRange converte value de [fromMin, fromMax] para [toMin, toMax].
// Para inteiros a divisão trunca em direção a zero, como o map() do Arduino.
func MapRange[T Number](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)*(toMax-toMin)/(fromMax-fromMin) + toMin
}

// Abs retorna o valor absoluto
func Abs[T Number](value T) T {
	if value < 0 {
		return -value
	}
	return value
}

// Sign retorna -1, 0 ou 1
func Sign[T constraints.Signed | constraints.Float](value T) T {
	switch {
	case value > 0:
		return 1
	case value < 0:
		return -1
	}
	return 0
}
