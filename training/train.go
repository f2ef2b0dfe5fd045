// Package training fits a capsule network with the margin loss and records the run on disk.
package training

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/ldsec/capsweep/capsnet"
	"github.com/ldsec/capsweep/optimizers"
	"github.com/ldsec/capsweep/schedule"
	"github.com/ldsec/capsweep/utils"
	"github.com/montanaflynn/stats"
	"go.dedis.ch/onet/v3/log"
)

// Run describes one training run. When Schedule is nil, Train looks ScheduleName up.
type Run struct {
	Dir          string
	Optimizer    string
	Epochs       int
	BatchSize    int
	Schedule     schedule.Func
	ScheduleName string
	Seed         int64
}

// Validate checks the run parameters
func (r Run) Validate() error {
	if r.Dir == "" {
		return errors.New("run has no output directory")
	}
	if r.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", r.Epochs)
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", r.BatchSize)
	}
	if r.Schedule == nil {
		return errors.New("run has neither a learning rate schedule nor a schedule name")
	}
	return nil
}

// Score is the loss and accuracy on the test split
type Score struct {
	Loss     float64
	Accuracy float64
}

func (s Score) String() string {
	return fmt.Sprintf("[%v, %v]", s.Loss, s.Accuracy)
}

// Result of a training run
type Result struct {
	History     *History
	Score       Score
	BestValAcc  float64
	Checkpoints []string
}

// Train fits model on train, validating on dev after every epoch, then evaluates it on test.
// The callbacks receive the epoch logs; when none are given DefaultCallbacks(run) is used.
// The accuracy and loss curves and the final weights are written to run.Dir.
func Train(model *capsnet.CapsNet, train, dev, test utils.Dataset, run Run, callbacks ...Callback) (*Result, error) {
	if run.Schedule == nil && run.ScheduleName != "" {
		f, err := schedule.Lookup(run.ScheduleName)
		if err != nil {
			return nil, err
		}
		run.Schedule = f
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	s := model.Settings()
	for name, d := range map[string]utils.Dataset{"train": train, "dev": dev, "test": test} {
		if err := d.Validate(s.MaxLen, s.NClasses); err != nil {
			return nil, fmt.Errorf("%s split: %w", name, err)
		}
	}

	// compile
	opt, err := optimizers.New(run.Optimizer)
	if err != nil {
		return nil, err
	}
	if len(callbacks) == 0 {
		callbacks = DefaultCallbacks(run)
	}
	history := NewHistory()
	callbacks = append([]Callback{history}, callbacks...)
	ctx := &Context{Model: model, Optimizer: opt, Run: run}
	rng := rand.New(rand.NewSource(run.Seed))

	for i, cb := range callbacks {
		if err := cb.OnTrainBegin(ctx); err != nil {
			endTraining(ctx, callbacks[:i])
			return nil, err
		}
	}
	// callbacks own open files from here, close them whatever happens
	fitErr := fit(ctx, train, dev, rng, callbacks)
	if err := endTraining(ctx, callbacks); err != nil && fitErr == nil {
		fitErr = err
	}
	if fitErr != nil {
		return nil, fitErr
	}

	loss, acc, err := Evaluate(model, test, run.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("evaluating test split: %w", err)
	}
	log.Lvlf1("Test loss: %.4f - test acc: %.4f", loss, acc)
	result := &Result{History: history, Score: Score{Loss: loss, Accuracy: acc}}
	if result.BestValAcc, err = stats.Max(history.Metrics[MetricValAcc]); err != nil {
		return nil, err
	}
	for _, cb := range callbacks {
		if mc, ok := cb.(*ModelCheckpoint); ok {
			result.Checkpoints = append(result.Checkpoints, mc.Saved...)
		}
	}

	// summarize history for accuracy and loss
	if err := utils.PlotHistory(filepath.Join(run.Dir, AccuracyPlotFile), "model accuracy", "accuracy",
		history.Metrics[MetricAcc], history.Metrics[MetricValAcc], "training accuracy", "testing accuracy"); err != nil {
		return nil, err
	}
	if err := utils.PlotHistory(filepath.Join(run.Dir, LossPlotFile), "model loss", "loss",
		history.Metrics[MetricLoss], history.Metrics[MetricValLoss], "training loss", "testing loss"); err != nil {
		return nil, err
	}

	if err := model.SaveWeights(filepath.Join(run.Dir, TrainedWeightsFile)); err != nil {
		return nil, err
	}
	return result, nil
}

// endTraining calls OnTrainEnd on every callback and returns the first error
func endTraining(ctx *Context, callbacks []Callback) error {
	var first error
	for _, cb := range callbacks {
		if err := cb.OnTrainEnd(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func fit(ctx *Context, train, dev utils.Dataset, rng *rand.Rand, callbacks []Callback) error {
	run := ctx.Run
	for epoch := 0; epoch < run.Epochs; epoch++ {
		logs := make(Logs)
		for _, cb := range callbacks {
			if err := cb.OnEpochBegin(ctx, epoch, logs); err != nil {
				return err
			}
		}

		loss, acc, err := trainEpoch(ctx, train, run.BatchSize, rng, callbacks)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch+1, err)
		}
		valLoss, valAcc, err := Evaluate(ctx.Model, dev, run.BatchSize)
		if err != nil {
			return fmt.Errorf("epoch %d validation: %w", epoch+1, err)
		}
		logs[MetricLoss] = loss
		logs[MetricAcc] = acc
		logs[MetricValLoss] = valLoss
		logs[MetricValAcc] = valAcc
		logs[MetricLR] = ctx.Optimizer.LearningRate()
		log.Lvlf1("Epoch %d/%d - loss: %.4f - acc: %.4f - val_loss: %.4f - val_acc: %.4f",
			epoch+1, run.Epochs, loss, acc, valLoss, valAcc)

		for _, cb := range callbacks {
			if err := cb.OnEpochEnd(ctx, epoch, logs); err != nil {
				return err
			}
		}
	}
	return nil
}

// trainEpoch makes one shuffled pass over train, returns the sample-weighted mean loss and accuracy
func trainEpoch(ctx *Context, train utils.Dataset, batchSize int, rng *rand.Rand, callbacks []Callback) (float64, float64, error) {
	n := train.Len()
	perm := rng.Perm(n)
	totalLoss, totalAcc := 0., 0.

	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		for _, cb := range callbacks {
			if err := cb.OnBatchBegin(ctx, start/batchSize, perm[start:end]); err != nil {
				return 0, 0, err
			}
		}
		batch := train.Batch(perm[start:end])

		ctx.Model.ZeroGrad()
		pred, err := ctx.Model.Forward(batch.X)
		if err != nil {
			return 0, 0, err
		}
		size := float64(end - start)
		totalLoss += MarginLoss(batch.Y, pred) * size
		totalAcc += utils.CategoricalAccuracy(batch.Y, pred) * size

		ctx.Model.Backward(MarginLossGrad(batch.Y, pred))
		ctx.Optimizer.Step(ctx.Model.Params())
	}
	return totalLoss / float64(n), totalAcc / float64(n), nil
}

// Evaluate returns the margin loss and accuracy of model on data
func Evaluate(model *capsnet.CapsNet, data utils.Dataset, batchSize int) (float64, float64, error) {
	pred, err := model.Predict(data.X, batchSize)
	if err != nil {
		return 0, 0, err
	}
	return MarginLoss(data.Y, pred), utils.CategoricalAccuracy(data.Y, pred), nil
}
