package utils

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dataset holds token ids (nsamples x maxLen, 0 is padding) and one-hot labels (nsamples x nclasses)
type Dataset struct {
	X *mat.Dense
	Y *mat.Dense
}

// Corpus is what a Loader returns for one named dataset
type Corpus struct {
	Train     Dataset
	Dev       Dataset
	Test      Dataset
	VocabSize int
	MaxLen    int
	Classes   []string
}

// NClasses is the number of distinct labels of the corpus
func (c *Corpus) NClasses() int {
	return len(c.Classes)
}

// Loader loads a dataset by name
type Loader interface {
	Load(name string) (*Corpus, error)
}

// NewDataset builds a Dataset from token sequences and label indices.
// Sequences longer than maxLen are truncated, shorter ones are padded with 0.
func NewDataset(tokens [][]int, labels []int, maxLen, nclasses int) (Dataset, error) {
	if len(tokens) != len(labels) {
		return Dataset{}, fmt.Errorf("got %d sequences but %d labels", len(tokens), len(labels))
	}
	if len(tokens) == 0 {
		return Dataset{}, errors.New("empty dataset")
	}
	if maxLen <= 0 || nclasses <= 0 {
		return Dataset{}, fmt.Errorf("invalid shape: maxLen=%d nclasses=%d", maxLen, nclasses)
	}

	X := mat.NewDense(len(tokens), maxLen, nil)
	Y := mat.NewDense(len(tokens), nclasses, nil)
	for i, seq := range tokens {
		row := X.RawRowView(i)
		for j := 0; j < len(seq) && j < maxLen; j++ {
			row[j] = float64(seq[j])
		}
		if labels[i] < 0 || labels[i] >= nclasses {
			return Dataset{}, fmt.Errorf("label %d of sample %d out of range [0,%d)", labels[i], i, nclasses)
		}
		Y.Set(i, labels[i], 1)
	}
	return Dataset{X: X, Y: Y}, nil
}

// Len returns the number of samples
func (d Dataset) Len() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

// Batch gathers the rows listed in idx into a new Dataset
func (d Dataset) Batch(idx []int) Dataset {
	_, maxLen := d.X.Dims()
	_, nclasses := d.Y.Dims()
	X := mat.NewDense(len(idx), maxLen, nil)
	Y := mat.NewDense(len(idx), nclasses, nil)
	for i, r := range idx {
		X.SetRow(i, d.X.RawRowView(r))
		Y.SetRow(i, d.Y.RawRowView(r))
	}
	return Dataset{X: X, Y: Y}
}

// Slice returns rows [i, j) as a view sharing storage with d
func (d Dataset) Slice(i, j int) Dataset {
	_, maxLen := d.X.Dims()
	_, nclasses := d.Y.Dims()
	return Dataset{
		X: d.X.Slice(i, j, 0, maxLen).(*mat.Dense),
		Y: d.Y.Slice(i, j, 0, nclasses).(*mat.Dense),
	}
}

// Partition splits off the last fraction of rows, return (head, tail)
func (d Dataset) Partition(fraction float64) (Dataset, Dataset, error) {
	n := d.Len()
	if fraction <= 0 || fraction >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("fraction %v not in (0,1)", fraction)
	}
	tail := int(float64(n) * fraction)
	if tail == 0 {
		tail = 1
	}
	if tail >= n {
		return Dataset{}, Dataset{}, fmt.Errorf("cannot partition %d samples", n)
	}
	return d.Slice(0, n-tail), d.Slice(n-tail, n), nil
}

// Validate checks that d matches the input shape and class count of a model
func (d Dataset) Validate(maxLen, nclasses int) error {
	if d.X == nil || d.Y == nil {
		return errors.New("dataset is empty")
	}
	xr, xc := d.X.Dims()
	yr, yc := d.Y.Dims()
	if xr != yr {
		return fmt.Errorf("dataset has %d inputs but %d labels", xr, yr)
	}
	if xc != maxLen {
		return fmt.Errorf("dataset sequence length %d, model expects %d", xc, maxLen)
	}
	if yc != nclasses {
		return fmt.Errorf("dataset has %d classes, model expects %d", yc, nclasses)
	}
	return nil
}

// MemoryLoader serves corpora already in memory, keyed by dataset name
type MemoryLoader map[string]*Corpus

// Load implements Loader
func (m MemoryLoader) Load(name string) (*Corpus, error) {
	c, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no dataset named %q", name)
	}
	return c, nil
}
