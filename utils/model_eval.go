package utils

import (
	"gonum.org/v1/gonum/mat"
)

// Classify returns the argmax class of every row of scores
func Classify(scores mat.Matrix) []int {
	nsamples, nclass := scores.Dims()
	class := make([]int, nsamples)
	row := make([]float64, nclass)
	for r := range class {
		mat.Row(row, r, scores)
		class[r] = Argmax(row)
	}
	return class
}

// ComputeAccuracy is the fraction of samples where c and y agree
func ComputeAccuracy(c []int, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	accuracy := 0.
	for i := range y {
		if c[i] == y[i] {
			accuracy++
		}
	}
	return accuracy / float64(len(y))
}

// CategoricalAccuracy compares the argmax of predictions with the argmax of one-hot labels
func CategoricalAccuracy(labels, predictions mat.Matrix) float64 {
	return ComputeAccuracy(Classify(predictions), Classify(labels))
}
