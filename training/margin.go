package training

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// margin loss constants
const (
	mPlus  = 0.9
	mMinus = 0.1
	lambda = 0.5
)

// MarginLoss is the batch mean of sum_c T*max(0, 0.9-P)^2 + 0.5*(1-T)*max(0, P-0.1)^2
func MarginLoss(truth, pred mat.Matrix) float64 {
	n, nclass := truth.Dims()
	if n == 0 {
		return 0
	}
	total := 0.
	for i := 0; i < n; i++ {
		for c := 0; c < nclass; c++ {
			t, p := truth.At(i, c), pred.At(i, c)
			present := math.Max(0, mPlus-p)
			absent := math.Max(0, p-mMinus)
			total += t*present*present + lambda*(1-t)*absent*absent
		}
	}
	return total / float64(n)
}

// MarginLossGrad is the derivative of MarginLoss with respect to pred
func MarginLossGrad(truth, pred mat.Matrix) *mat.Dense {
	n, nclass := truth.Dims()
	grad := mat.NewDense(n, nclass, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < nclass; c++ {
			t, p := truth.At(i, c), pred.At(i, c)
			present := math.Max(0, mPlus-p)
			absent := math.Max(0, p-mMinus)
			grad.Set(i, c, (-2*t*present+2*lambda*(1-t)*absent)/float64(n))
		}
	}
	return grad
}
