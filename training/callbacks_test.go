package training

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ldsec/capsweep/optimizers"
	"github.com/stretchr/testify/require"
)

func TestModelCheckpoint(t *testing.T) {
	dir := t.TempDir()
	ctx := &Context{Model: toyModel(t, 1)}
	mc := NewModelCheckpoint(filepath.Join(dir, CheckpointPattern), MetricValLoss)

	require.NoError(t, mc.OnTrainBegin(ctx))
	for epoch, loss := range []float64{0.5, 0.6, 0.4, 0.4} {
		require.NoError(t, mc.OnEpochEnd(ctx, epoch, Logs{MetricValLoss: loss}))
	}
	require.Equal(t, []string{
		filepath.Join(dir, "weights-improvement-01.hdf5"),
		filepath.Join(dir, "weights-improvement-03.hdf5"),
	}, mc.Saved)
	_, err := os.Stat(filepath.Join(dir, "weights-improvement-02.hdf5"))
	require.True(t, os.IsNotExist(err))

	acc := NewModelCheckpoint(filepath.Join(dir, "acc-%02d.hdf5"), MetricValAcc)
	require.NoError(t, acc.OnTrainBegin(ctx))
	for epoch, a := range []float64{0.5, 0.7, 0.6} {
		require.NoError(t, acc.OnEpochEnd(ctx, epoch, Logs{MetricValAcc: a}))
	}
	require.Len(t, acc.Saved, 2)

	// a missing metric is skipped
	require.NoError(t, acc.OnEpochEnd(ctx, 3, Logs{}))
	require.Len(t, acc.Saved, 2)
}

func TestLearningRateScheduler(t *testing.T) {
	opt, err := optimizers.New("nadam")
	require.NoError(t, err)
	ctx := &Context{Optimizer: opt}

	l := NewLearningRateScheduler(func(epoch int) float64 { return 1 / float64(epoch+1) })
	require.NoError(t, l.OnEpochBegin(ctx, 3, Logs{}))
	require.Equal(t, 0.25, opt.LearningRate())

	require.Error(t, NewLearningRateScheduler(nil).OnEpochBegin(ctx, 0, Logs{}))
	require.Error(t, NewLearningRateScheduler(func(int) float64 { return 0 }).OnEpochBegin(ctx, 0, Logs{}))
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.OnTrainBegin(nil))
	rng := rand.New(rand.NewSource(1))
	for epoch := 0; epoch < 3; epoch++ {
		require.NoError(t, h.OnEpochEnd(nil, epoch, Logs{MetricLoss: rng.Float64()}))
	}
	require.Equal(t, []int{0, 1, 2}, h.Epochs)
	require.Len(t, h.Metrics[MetricLoss], 3)

	require.NoError(t, h.OnTrainBegin(nil))
	require.Empty(t, h.Epochs)
}
