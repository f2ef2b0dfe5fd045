package layers

import (
	"fmt"
	"math/rand"

	"github.com/ldsec/capsweep/utils"
	"gonum.org/v1/gonum/mat"
)

// Embedding maps token ids to dense vectors
type Embedding struct {
	VocabSize int
	Dim       int
	weights   *Param  // vocab x dim
	lastInput [][]int // nsamples x maxLen
}

// NewEmbedding draws the lookup table uniformly in [-0.05, 0.05]
func NewEmbedding(rng *rand.Rand, vocabSize, dim int) *Embedding {
	c := make([]float64, vocabSize*dim)
	for i := range c {
		c[i] = utils.Random(rng, -0.05, 0.05)
	}
	return &Embedding{
		VocabSize: vocabSize,
		Dim:       dim,
		weights:   NewParam("embedding", vocabSize, dim, c),
	}
}

// Forward looks up every token of every row of input (nsamples x maxLen)
// returns nsamples matrices of maxLen x dim
func (e *Embedding) Forward(input mat.Matrix) ([]*mat.Dense, error) {
	nsamples, maxLen := input.Dims()
	output := make([]*mat.Dense, nsamples)
	e.lastInput = make([][]int, nsamples)

	for i := 0; i < nsamples; i++ {
		e.lastInput[i] = make([]int, maxLen)
		output[i] = mat.NewDense(maxLen, e.Dim, nil)
		for j := 0; j < maxLen; j++ {
			tok := int(input.At(i, j))
			if tok < 0 || tok >= e.VocabSize {
				return nil, fmt.Errorf("token id %d out of vocabulary [0,%d)", tok, e.VocabSize)
			}
			e.lastInput[i][j] = tok
			output[i].SetRow(j, e.weights.W.RawRowView(tok))
		}
	}
	return output, nil
}

// Backward scatters error (nsamples x maxLen x dim) into the rows of the looked-up tokens
func (e *Embedding) Backward(error []*mat.Dense) {
	for i := range error {
		for j, tok := range e.lastInput[i] {
			grad := e.weights.Grad.RawRowView(tok)
			row := error[i].RawRowView(j)
			for k := range grad {
				grad[k] += row[k]
			}
		}
	}
}

// Params of the layer
func (e *Embedding) Params() []*Param {
	return []*Param{e.weights}
}
