package utils

import (
	"math"
	"math/rand"

	"go.dedis.ch/onet/v3/log"
)

// ********************************** SLICE MANIPULATION **********************************
// Random generate a random floating point number between a and b
func Random(rng *rand.Rand, a, b float64) float64 {
	return (b-a)*rng.Float64() + a
}

// Max returns the largest value of a
func Max(a []float64) float64 {
	max := a[0]
	for i := range a {
		if a[i] > max {
			max = a[i]
		}
	}
	return max
}

// Argmax returns the index of the first largest value of a
func Argmax(a []float64) int {
	idx := 0
	for i := range a {
		if a[i] > a[idx] {
			idx = i
		}
	}
	return idx
}

// WeightsInit draws length weights uniformly in [-1, 1] scaled by 1/sqrt(inputs)
func WeightsInit(rng *rand.Rand, length int, inputs float64) []float64 {
	a := make([]float64, length)
	for i := range a {
		a[i] = Random(rng, -1, 1) / math.Sqrt(inputs)
	}
	return a
}

// SoftMax activation function, written into dst
func Softmax(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	var sum float64
	max := Max(x)
	for i, y := range x {
		dst[i] = math.Exp(y - max)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
	return dst
}

// ********************************** ACTIVATION FUNCTIONS **********************************

// Relu is the rectifier function: max(0,x)
func Relu(x float64) float64 {
	return math.Max(0, x)
}

// ReluD is the derivative of the Relu function
// {0: if x < 0, 1: if x > 0
func ReluD(x float64) float64 {
	if x > 0 {
		return 1.0
	} else if x < 0 {
		return 0.0
	}
	log.Lvl5("ReluD is undefined for x==0")
	return 0.0
}

// make function float -> float into function to apply to matrix (int, int, float -> float)
func ToApply(f func(float64) float64) func(i, j int, v float64) float64 {
	return func(i, j int, v float64) float64 {
		return f(v)
	}
}

// IsFinitePositive reports whether x is a usable learning rate
func IsFinitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
