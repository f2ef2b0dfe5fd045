package layers

import (
	"fmt"
	"math/rand"

	"github.com/ldsec/capsweep/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Squash scales s to a vector of the same direction with length |s|^2/(1+|s|^2)
func Squash(dst, s []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(s))
	}
	n := floats.Norm(s, 2)
	floats.ScaleTo(dst, n/(1+n*n), s)
	return dst
}

// SquashBackward returns the error on the input s of Squash given the error dv on its output
func SquashBackward(dst, s, dv []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(s))
	}
	n := floats.Norm(s, 2)
	if n < 1e-12 {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}
	a := n / (1 + n*n)
	da := (1 - n*n) / ((1 + n*n) * (1 + n*n))
	k := da / n * floats.Dot(s, dv)
	floats.ScaleTo(dst, a, dv)
	floats.AddScaled(dst, k, s)
	return dst
}

// PrimaryCaps regroups the nfilters channels of every position into NCaps capsules of Dim values each and squashes them
type PrimaryCaps struct {
	NCaps  int
	Dim    int
	last_s []*mat.Dense // nsamples x (npositions*ncaps) x dim, before squash
	npos   []int
}

// Forward input: nsamples x npositions x (ncaps*dim)
// output: nsamples x (npositions*ncaps) x dim, capsule i = position i/ncaps, type i%ncaps
func (pc *PrimaryCaps) Forward(input []*mat.Dense) ([]*mat.Dense, error) {
	pc.last_s = make([]*mat.Dense, len(input))
	pc.npos = make([]int, len(input))
	output := make([]*mat.Dense, len(input))

	for i := range input {
		npos, nch := input[i].Dims()
		if nch != pc.NCaps*pc.Dim {
			return nil, fmt.Errorf("primary caps: %d channels, expected %d x %d", nch, pc.NCaps, pc.Dim)
		}
		pc.npos[i] = npos
		ncaps := npos * pc.NCaps

		s := mat.NewDense(ncaps, pc.Dim, nil)
		for p := 0; p < npos; p++ {
			row := input[i].RawRowView(p)
			for t := 0; t < pc.NCaps; t++ {
				copy(s.RawRowView(p*pc.NCaps+t), row[t*pc.Dim:(t+1)*pc.Dim])
			}
		}
		pc.last_s[i] = s

		output[i] = mat.NewDense(ncaps, pc.Dim, nil)
		for c := 0; c < ncaps; c++ {
			Squash(output[i].RawRowView(c), s.RawRowView(c))
		}
	}
	return output, nil
}

// Backward returns the error on the input channels given the error on the capsules
func (pc *PrimaryCaps) Backward(error []*mat.Dense) []*mat.Dense {
	next_error := make([]*mat.Dense, len(error))
	for i := range error {
		npos := pc.npos[i]
		next_error[i] = mat.NewDense(npos, pc.NCaps*pc.Dim, nil)
		for p := 0; p < npos; p++ {
			row := next_error[i].RawRowView(p)
			for t := 0; t < pc.NCaps; t++ {
				c := p*pc.NCaps + t
				SquashBackward(row[t*pc.Dim:(t+1)*pc.Dim], pc.last_s[i].RawRowView(c), error[i].RawRowView(c))
			}
		}
	}
	return next_error
}

// ClassCaps maps primary capsules to one capsule per class with dynamic routing.
// The transformation matrix depends on the primary capsule type, not on its position,
// so the layer works for any sequence length.
type ClassCaps struct {
	Nclasses int
	InTypes  int
	InDim    int
	Dim      int
	Routings int
	weights  *Param // (nclasses*intypes*dim) x indim, block (j,t) maps a type-t capsule to class j
	cache    []routingState
}

type routingState struct {
	u    *mat.Dense // ncaps x indim
	uhat []float64  // ncaps x nclasses x dim
	c    []float64  // ncaps x nclasses, coupling coefficients of the last iteration
	s    []float64  // nclasses x dim, before squash
	v    []float64  // nclasses x dim
}

// NewClassCaps initialises the transformation matrices
func NewClassCaps(rng *rand.Rand, nclasses, inTypes, inDim, dim, routings int) *ClassCaps {
	n := nclasses * inTypes * dim * inDim
	return &ClassCaps{
		Nclasses: nclasses,
		InTypes:  inTypes,
		InDim:    inDim,
		Dim:      dim,
		Routings: routings,
		weights:  NewParam("classcaps/W", nclasses*inTypes*dim, inDim, utils.WeightsInit(rng, n, float64(inDim))),
	}
}

func (cc *ClassCaps) block(m *mat.Dense, j, t int) []float64 {
	raw := m.RawMatrix()
	off := (j*cc.InTypes + t) * cc.Dim * raw.Stride
	return raw.Data[off : off+cc.Dim*raw.Stride]
}

// Forward input: nsamples x ncaps x indim, returns the capsule lengths nsamples x nclasses
func (cc *ClassCaps) Forward(input []*mat.Dense) (*mat.Dense, error) {
	cc.cache = make([]routingState, len(input))
	output := mat.NewDense(len(input), cc.Nclasses, nil)
	C, D := cc.Nclasses, cc.Dim

	for i := range input {
		ncaps, indim := input[i].Dims()
		if indim != cc.InDim || ncaps%cc.InTypes != 0 {
			return nil, fmt.Errorf("class caps: got %d capsules of dim %d", ncaps, indim)
		}
		st := routingState{
			u:    input[i],
			uhat: make([]float64, ncaps*C*D),
			c:    make([]float64, ncaps*C),
			s:    make([]float64, C*D),
			v:    make([]float64, C*D),
		}

		// prediction vectors
		for k := 0; k < ncaps; k++ {
			u := input[i].RawRowView(k)
			t := k % cc.InTypes
			for j := 0; j < C; j++ {
				w := cc.block(cc.weights.W, j, t)
				uhat := st.uhat[(k*C+j)*D : (k*C+j+1)*D]
				for d := 0; d < D; d++ {
					uhat[d] = floats.Dot(w[d*indim:(d+1)*indim], u)
				}
			}
		}

		// routing by agreement
		b := make([]float64, ncaps*C)
		for r := 0; r < cc.Routings; r++ {
			for k := 0; k < ncaps; k++ {
				utils.Softmax(st.c[k*C:(k+1)*C], b[k*C:(k+1)*C])
			}
			for j := range st.s {
				st.s[j] = 0
			}
			for k := 0; k < ncaps; k++ {
				for j := 0; j < C; j++ {
					floats.AddScaled(st.s[j*D:(j+1)*D], st.c[k*C+j], st.uhat[(k*C+j)*D:(k*C+j+1)*D])
				}
			}
			for j := 0; j < C; j++ {
				Squash(st.v[j*D:(j+1)*D], st.s[j*D:(j+1)*D])
			}
			if r < cc.Routings-1 {
				for k := 0; k < ncaps; k++ {
					for j := 0; j < C; j++ {
						b[k*C+j] += floats.Dot(st.uhat[(k*C+j)*D:(k*C+j+1)*D], st.v[j*D:(j+1)*D])
					}
				}
			}
		}

		for j := 0; j < C; j++ {
			output.Set(i, j, floats.Norm(st.v[j*D:(j+1)*D], 2))
		}
		cc.cache[i] = st
	}
	return output, nil
}

// Backward takes the error on the capsule lengths (nsamples x nclasses), accumulates the
// weight gradient and returns the error on the input capsules.
// Coupling coefficients are treated as constants.
func (cc *ClassCaps) Backward(error *mat.Dense) []*mat.Dense {
	C, D := cc.Nclasses, cc.Dim
	next_error := make([]*mat.Dense, len(cc.cache))
	dv := make([]float64, D)
	ds := make([]float64, C*D)
	duhat := make([]float64, D)

	for i, st := range cc.cache {
		for j := 0; j < C; j++ {
			v := st.v[j*D : (j+1)*D]
			norm := floats.Norm(v, 2)
			if norm > 0 {
				floats.ScaleTo(dv, error.At(i, j)/norm, v)
			} else {
				for d := range dv {
					dv[d] = 0
				}
			}
			SquashBackward(ds[j*D:(j+1)*D], st.s[j*D:(j+1)*D], dv)
		}

		ncaps, indim := st.u.Dims()
		next_error[i] = mat.NewDense(ncaps, indim, nil)
		for k := 0; k < ncaps; k++ {
			u := st.u.RawRowView(k)
			du := next_error[i].RawRowView(k)
			t := k % cc.InTypes
			for j := 0; j < C; j++ {
				floats.ScaleTo(duhat, st.c[k*C+j], ds[j*D:(j+1)*D])
				w := cc.block(cc.weights.W, j, t)
				dw := cc.block(cc.weights.Grad, j, t)
				for d := 0; d < D; d++ {
					floats.AddScaled(dw[d*indim:(d+1)*indim], duhat[d], u)
					floats.AddScaled(du, duhat[d], w[d*indim:(d+1)*indim])
				}
			}
		}
	}
	return next_error
}

// Params of the layer
func (cc *ClassCaps) Params() []*Param {
	return []*Param{cc.weights}
}
