package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewDataset(t *testing.T) {
	d, err := NewDataset([][]int{{1, 2, 3, 4}, {5}}, []int{1, 0}, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	require.Equal(t, []float64{1, 2, 3}, d.X.RawRowView(0))
	require.Equal(t, []float64{5, 0, 0}, d.X.RawRowView(1))
	require.Equal(t, []float64{0, 1}, d.Y.RawRowView(0))
	require.NoError(t, d.Validate(3, 2))
	require.Error(t, d.Validate(4, 2))
	require.Error(t, d.Validate(3, 3))

	_, err = NewDataset([][]int{{1}}, []int{2}, 3, 2)
	require.Error(t, err)
	_, err = NewDataset([][]int{{1}}, []int{0, 1}, 3, 2)
	require.Error(t, err)
	_, err = NewDataset(nil, nil, 3, 2)
	require.Error(t, err)
}

func TestBatchSlicePartition(t *testing.T) {
	tokens := make([][]int, 10)
	labels := make([]int, 10)
	for i := range tokens {
		tokens[i] = []int{i}
		labels[i] = i % 2
	}
	d, err := NewDataset(tokens, labels, 1, 2)
	require.NoError(t, err)

	b := d.Batch([]int{7, 2})
	require.Equal(t, 2, b.Len())
	require.Equal(t, 7., b.X.At(0, 0))
	require.Equal(t, 1., b.Y.At(0, 1))

	head, tail, err := d.Partition(0.3)
	require.NoError(t, err)
	require.Equal(t, 7, head.Len())
	require.Equal(t, 3, tail.Len())
	require.Equal(t, 7., tail.X.At(0, 0))

	_, _, err = d.Partition(1)
	require.Error(t, err)
}

func TestAccuracy(t *testing.T) {
	scores := mat.NewDense(3, 3, []float64{
		0.1, 0.8, 0.1,
		0.5, 0.2, 0.3,
		0.2, 0.2, 0.6,
	})
	require.Equal(t, []int{1, 0, 2}, Classify(scores))

	labels := mat.NewDense(3, 3, []float64{
		0, 1, 0,
		0, 0, 1,
		0, 0, 1,
	})
	require.InDelta(t, 2./3., CategoricalAccuracy(labels, scores), 1e-12)
	require.Equal(t, 0., ComputeAccuracy(nil, nil))
}

func TestMemoryLoader(t *testing.T) {
	d, err := NewDataset([][]int{{1}, {2}}, []int{0, 1}, 1, 2)
	require.NoError(t, err)
	loader := MemoryLoader{"TOY": {Train: d, Dev: d, Test: d, VocabSize: 3, MaxLen: 1, Classes: []string{"a", "b"}}}

	c, err := loader.Load("TOY")
	require.NoError(t, err)
	require.Equal(t, 2, c.NClasses())
	_, err = loader.Load("MR")
	require.Error(t, err)
}

func TestSoftmax(t *testing.T) {
	p := Softmax(nil, []float64{1000, 1000})
	require.Equal(t, []float64{0.5, 0.5}, p)
	require.Equal(t, 2, Argmax([]float64{0, 1, 3, 3}))
}
