package layers

import (
	"gonum.org/v1/gonum/mat"
)

// Param is a trainable weight matrix with the gradient accumulated for it by Backward
type Param struct {
	Name string
	W    *mat.Dense
	Grad *mat.Dense
}

// NewParam allocates a r x c parameter, data may be nil
func NewParam(name string, r, c int, data []float64) *Param {
	return &Param{
		Name: name,
		W:    mat.NewDense(r, c, data),
		Grad: mat.NewDense(r, c, nil),
	}
}

// ZeroGrad resets the accumulated gradient
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Size is the number of scalar weights
func (p *Param) Size() int {
	r, c := p.W.Dims()
	return r * c
}
