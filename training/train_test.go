package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ldsec/capsweep/capsnet"
	"github.com/ldsec/capsweep/schedule"
	"github.com/ldsec/capsweep/utils"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
)

const (
	testVocab  = 20
	testMaxLen = 5
)

// toyDataset draws sequences whose tokens come from a band of the vocabulary chosen by the label
func toyDataset(t *testing.T, rng *rand.Rand, n int) utils.Dataset {
	tokens := make([][]int, n)
	labels := make([]int, n)
	for i := range tokens {
		labels[i] = rng.Intn(2)
		tokens[i] = make([]int, testMaxLen)
		for j := range tokens[i] {
			tokens[i][j] = 1 + labels[i]*9 + rng.Intn(9)
		}
	}
	d, err := utils.NewDataset(tokens, labels, testMaxLen, 2)
	require.NoError(t, err)
	return d
}

func toyModel(t *testing.T, seed int64) *capsnet.CapsNet {
	s := capsnet.NewSettings(testVocab, testMaxLen, 2)
	s.EmbedDim = 4
	s.PrimaryCaps = 2
	s.PrimaryDim = 2
	s.ClassDim = 3
	s.NumRouting = 2
	model, err := capsnet.New(s, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return model
}

func toyRun(dir string, epochs int) Run {
	return Run{
		Dir:          dir,
		Optimizer:    "adam",
		Epochs:       epochs,
		BatchSize:    8,
		Schedule:     schedule.ExpDecay,
		ScheduleName: "exp_decay",
		Seed:         1,
	}
}

func TestTrainWritesArtifacts(t *testing.T) {
	log.SetDebugVisible(1)
	rng := rand.New(rand.NewSource(1))
	train, dev, test := toyDataset(t, rng, 30), toyDataset(t, rng, 10), toyDataset(t, rng, 10)
	dir := t.TempDir()

	result, err := Train(toyModel(t, 1), train, dev, test, toyRun(dir, 3))
	require.NoError(t, err)

	for _, name := range []string{LogFile, AccuracyPlotFile, LossPlotFile, TrainedWeightsFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.NotZero(t, info.Size(), name)
	}
	events, err := filepath.Glob(filepath.Join(dir, TensorBoardDir, "events.out.tfevents.*"))
	require.NoError(t, err)
	require.Len(t, events, 1)

	// the first epoch always improves on +Inf
	require.NotEmpty(t, result.Checkpoints)
	require.Equal(t, filepath.Join(dir, "weights-improvement-01.hdf5"), result.Checkpoints[0])
	for _, c := range result.Checkpoints {
		require.FileExists(t, c)
	}

	require.Equal(t, []int{0, 1, 2}, result.History.Epochs)
	require.Len(t, result.History.Metrics[MetricValAcc], 3)
	require.Equal(t, []float64{schedule.ExpDecay(0), schedule.ExpDecay(1), schedule.ExpDecay(2)}, result.History.Metrics[MetricLR])
	require.GreaterOrEqual(t, result.Score.Accuracy, 0.)
	require.LessOrEqual(t, result.Score.Accuracy, 1.)
	require.GreaterOrEqual(t, result.BestValAcc, result.History.Metrics[MetricValAcc][0])

	f, err := os.Open(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"epoch", "acc", "loss", "lr", "val_acc", "val_loss"}, rows[0])
	require.Equal(t, "0", rows[1][0])

	// a second run in the same directory replaces the final weights
	before, err := os.Stat(filepath.Join(dir, TrainedWeightsFile))
	require.NoError(t, err)
	_, err = Train(toyModel(t, 2), train, dev, test, toyRun(dir, 1))
	require.NoError(t, err)
	after, err := os.Stat(filepath.Join(dir, TrainedWeightsFile))
	require.NoError(t, err)
	require.False(t, after.ModTime().Before(before.ModTime()))
}

func TestTrainLearns(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	train, dev := toyDataset(t, rng, 60), toyDataset(t, rng, 20)
	model := toyModel(t, 3)

	lossBefore, _, err := Evaluate(model, train, 16)
	require.NoError(t, err)

	run := toyRun(t.TempDir(), 15)
	run.Schedule = func(int) float64 { return 0.01 }
	result, err := Train(model, train, dev, dev, run, NewLearningRateScheduler(run.Schedule))
	require.NoError(t, err)

	lossAfter, _, err := Evaluate(model, train, 16)
	require.NoError(t, err)
	require.Less(t, lossAfter, lossBefore)
	require.Empty(t, result.Checkpoints)
}

func TestTrainRejectsBadInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	d := toyDataset(t, rng, 10)
	model := toyModel(t, 4)
	dir := t.TempDir()

	run := toyRun(dir, 1)
	run.Optimizer = "adagrad"
	_, err := Train(model, d, d, d, run)
	require.Error(t, err)

	run = toyRun(dir, 0)
	_, err = Train(model, d, d, d, run)
	require.Error(t, err)

	run = toyRun(dir, 1)
	run.Schedule = func(int) float64 { return -1 }
	_, err = Train(model, d, d, d, run)
	require.Error(t, err)

	wide, err := utils.NewDataset([][]int{{1}}, []int{0}, testMaxLen+1, 2)
	require.NoError(t, err)
	_, err = Train(model, wide, d, d, toyRun(dir, 1))
	require.Error(t, err)
}

// batchRecorder keeps the train rows seen by every epoch, in order
type batchRecorder struct {
	BaseCallback
	epoch  int
	orders [][]int
}

func (b *batchRecorder) OnEpochBegin(ctx *Context, epoch int, logs Logs) error {
	b.epoch = epoch
	b.orders = append(b.orders, nil)
	return nil
}

func (b *batchRecorder) OnBatchBegin(ctx *Context, batch int, indices []int) error {
	b.orders[b.epoch] = append(b.orders[b.epoch], indices...)
	return nil
}

func recordOrders(t *testing.T, train utils.Dataset, seed int64) [][]int {
	run := toyRun(t.TempDir(), 2)
	run.Seed = seed
	rec := &batchRecorder{}
	_, err := Train(toyModel(t, 1), train, train, train, run, rec)
	require.NoError(t, err)
	return rec.orders
}

func TestShuffleEveryEpoch(t *testing.T) {
	train := toyDataset(t, rand.New(rand.NewSource(5)), 20)

	orders := recordOrders(t, train, 7)
	require.Len(t, orders, 2)
	for _, order := range orders {
		require.Len(t, order, 20)
		seen := make(map[int]bool)
		for _, i := range order {
			seen[i] = true
		}
		require.Len(t, seen, 20)
	}
	require.NotEqual(t, orders[0], orders[1])

	identity := make([]int, 20)
	for i := range identity {
		identity[i] = i
	}
	require.NotEqual(t, identity, orders[0])

	require.Equal(t, orders, recordOrders(t, train, 7))
	require.NotEqual(t, orders, recordOrders(t, train, 8))
}

// endRecorder fails OnTrainBegin when fail is set and counts OnTrainEnd calls
type endRecorder struct {
	BaseCallback
	fail  bool
	ended int
}

func (e *endRecorder) OnTrainBegin(ctx *Context) error {
	if e.fail {
		return errors.New("cannot start")
	}
	return nil
}

func (e *endRecorder) OnTrainEnd(ctx *Context) error {
	e.ended++
	return nil
}

func TestTrainBeginFailureEndsStartedCallbacks(t *testing.T) {
	d := toyDataset(t, rand.New(rand.NewSource(6)), 10)
	dir := t.TempDir()

	// a file where the tensorboard directory should be
	blocker := filepath.Join(dir, TensorBoardDir)
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	csvLogger := NewCSVLogger(filepath.Join(dir, LogFile))
	started := &endRecorder{}
	failing := &endRecorder{fail: true}
	after := &endRecorder{}
	_, err := Train(toyModel(t, 1), d, d, d, toyRun(dir, 1),
		csvLogger, started, NewTensorBoard(blocker), failing, after)
	require.Error(t, err)

	require.Nil(t, csvLogger.file)
	require.Equal(t, 1, started.ended)
	require.Zero(t, failing.ended)
	require.Zero(t, after.ended)

	_, err = Train(toyModel(t, 1), d, d, d, toyRun(dir, 1), started, failing)
	require.Error(t, err)
	require.Equal(t, 2, started.ended)
}

func TestScheduleByName(t *testing.T) {
	d := toyDataset(t, rand.New(rand.NewSource(8)), 10)

	run := toyRun(t.TempDir(), 2)
	run.Schedule = nil
	run.ScheduleName = "step_decay"
	result, err := Train(toyModel(t, 1), d, d, d, run)
	require.NoError(t, err)
	require.Equal(t, []float64{schedule.StepDecay(0), schedule.StepDecay(1)}, result.History.Metrics[MetricLR])

	run.ScheduleName = "lambda2"
	result, err = Train(toyModel(t, 1), d, d, d, run)
	require.NoError(t, err)
	require.Equal(t, []float64{schedule.InvSqrtDecay(0), schedule.InvSqrtDecay(1)}, result.History.Metrics[MetricLR])

	run.ScheduleName = "cosine"
	_, err = Train(toyModel(t, 1), d, d, d, run)
	require.Error(t, err)

	run.ScheduleName = ""
	_, err = Train(toyModel(t, 1), d, d, d, run)
	require.Error(t, err)
}

func TestTrainLogsTestScore(t *testing.T) {
	log.SetDebugVisible(1)
	log.OutputToBuf()
	defer log.OutputToOs()

	d := toyDataset(t, rand.New(rand.NewSource(9)), 10)
	result, err := Train(toyModel(t, 1), d, d, d, toyRun(t.TempDir(), 1))
	require.NoError(t, err)

	out := log.GetStdOut()
	require.Contains(t, out, fmt.Sprintf("Test loss: %.4f - test acc: %.4f", result.Score.Loss, result.Score.Accuracy))
}
