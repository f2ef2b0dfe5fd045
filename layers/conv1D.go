package layers

import (
	"fmt"
	"math/rand"

	"github.com/ldsec/capsweep/utils"
	"gonum.org/v1/gonum/mat"
)

// a 1D convolutional layer sliding over the sequence axis
type Conv1D struct {
	Nfilters     int
	KernelSize   int
	InDim        int
	filters      *Param       // (kernel*indim) x nfilters
	bias         *Param       // 1 x nfilters
	last_input   []*mat.Dense // nsamples x npositions x (kernel*indim), unrolled windows
	u            []*mat.Dense // nsamples x npositions x nfilters, pre-activation
	activation   func(float64) float64
	d_activation func(float64) float64
}

// NewConv1D creates a convolution with relu activation
func NewConv1D(rng *rand.Rand, inDim, nfilters, kernelSize int) *Conv1D {
	fanIn := kernelSize * inDim
	return &Conv1D{
		Nfilters:     nfilters,
		KernelSize:   kernelSize,
		InDim:        inDim,
		filters:      NewParam("conv1d/kernel", fanIn, nfilters, utils.WeightsInit(rng, fanIn*nfilters, float64(fanIn))),
		bias:         NewParam("conv1d/bias", 1, nfilters, nil),
		activation:   utils.Relu,
		d_activation: utils.ReluD,
	}
}

// OutLen is the number of valid window positions for an input of length n
func (conv *Conv1D) OutLen(n int) int {
	return n - conv.KernelSize + 1
}

// Forward computes a forward pass of the Conv1D layer (valid padding, stride 1)
func (conv *Conv1D) Forward(input []*mat.Dense) ([]*mat.Dense, error) {
	conv.last_input = make([]*mat.Dense, len(input))
	conv.u = make([]*mat.Dense, len(input))
	output := make([]*mat.Dense, len(input))

	for i := range input {
		n, d := input[i].Dims()
		if d != conv.InDim {
			return nil, fmt.Errorf("conv1d: input dim %d, expected %d", d, conv.InDim)
		}
		npos := conv.OutLen(n)
		if npos < 1 {
			return nil, fmt.Errorf("conv1d: sequence of length %d shorter than kernel %d", n, conv.KernelSize)
		}

		cols := mat.NewDense(npos, conv.KernelSize*d, nil)
		for p := 0; p < npos; p++ {
			row := cols.RawRowView(p)
			for k := 0; k < conv.KernelSize; k++ {
				copy(row[k*d:(k+1)*d], input[i].RawRowView(p+k))
			}
		}
		conv.last_input[i] = cols

		conv.u[i] = mat.NewDense(npos, conv.Nfilters, nil)
		conv.u[i].Mul(cols, conv.filters.W)
		b := conv.bias.W.RawRowView(0)
		conv.u[i].Apply(func(_, j int, v float64) float64 { return v + b[j] }, conv.u[i])

		output[i] = mat.NewDense(npos, conv.Nfilters, nil)
		output[i].Apply(utils.ToApply(conv.activation), conv.u[i])
	}

	return output, nil
}

// Backward accumulates the filter and bias gradients given error
// returns the error with respect to the input (nsamples x n x indim)
func (conv *Conv1D) Backward(error []*mat.Dense) []*mat.Dense {
	fanIn, nfilters := conv.filters.W.Dims()
	temp := mat.NewDense(fanIn, nfilters, nil)
	next_error := make([]*mat.Dense, len(error))

	for i := range error {
		npos, _ := error[i].Dims()
		delta := mat.NewDense(npos, nfilters, nil)
		delta.Apply(utils.ToApply(conv.d_activation), conv.u[i])
		delta.MulElem(delta, error[i])

		temp.Mul(conv.last_input[i].T(), delta)
		conv.filters.Grad.Add(conv.filters.Grad, temp)

		db := conv.bias.Grad.RawRowView(0)
		for p := 0; p < npos; p++ {
			for j, v := range delta.RawRowView(p) {
				db[j] += v
			}
		}

		dcols := mat.NewDense(npos, fanIn, nil)
		dcols.Mul(delta, conv.filters.W.T())

		d := conv.InDim
		next_error[i] = mat.NewDense(npos+conv.KernelSize-1, d, nil)
		for p := 0; p < npos; p++ {
			row := dcols.RawRowView(p)
			for k := 0; k < conv.KernelSize; k++ {
				dst := next_error[i].RawRowView(p + k)
				for c := 0; c < d; c++ {
					dst[c] += row[k*d+c]
				}
			}
		}
	}
	return next_error
}

// Params of the layer
func (conv *Conv1D) Params() []*Param {
	return []*Param{conv.filters, conv.bias}
}
