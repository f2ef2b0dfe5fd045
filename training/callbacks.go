package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ldsec/capsweep/capsnet"
	"github.com/ldsec/capsweep/optimizers"
	"github.com/ldsec/capsweep/schedule"
	"github.com/ldsec/capsweep/utils"
	"go.dedis.ch/onet/v3/log"
)

// metric names reported in Logs
const (
	MetricAcc     = "acc"
	MetricLoss    = "loss"
	MetricValAcc  = "val_acc"
	MetricValLoss = "val_loss"
	MetricLR      = "lr"
)

// Logs holds the metrics of one epoch
type Logs map[string]float64

// Context is what callbacks see of the running fit
type Context struct {
	Model     *capsnet.CapsNet
	Optimizer optimizers.Optimizer
	Run       Run
}

// Callback is invoked by Train around the training loop; an error aborts the run
type Callback interface {
	OnTrainBegin(ctx *Context) error
	OnEpochBegin(ctx *Context, epoch int, logs Logs) error
	// OnBatchBegin receives the rows of train making up the batch
	OnBatchBegin(ctx *Context, batch int, indices []int) error
	OnEpochEnd(ctx *Context, epoch int, logs Logs) error
	OnTrainEnd(ctx *Context) error
}

// BaseCallback provides no-op implementations for Callback
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(ctx *Context) error                           { return nil }
func (BaseCallback) OnEpochBegin(ctx *Context, epoch int, logs Logs) error     { return nil }
func (BaseCallback) OnBatchBegin(ctx *Context, batch int, indices []int) error { return nil }
func (BaseCallback) OnEpochEnd(ctx *Context, epoch int, logs Logs) error       { return nil }
func (BaseCallback) OnTrainEnd(ctx *Context) error                             { return nil }

// file names inside a run directory
const (
	LogFile            = "log.csv"
	TensorBoardDir     = "tensorboard-logs"
	CheckpointPattern  = "weights-improvement-%02d.hdf5"
	AccuracyPlotFile   = "model_accuracy.png"
	LossPlotFile       = "model_loss.png"
	TrainedWeightsFile = "trained_model.h5"
)

// DefaultCallbacks builds the csv log, tensorboard, checkpoint and learning rate callbacks writing into run.Dir
func DefaultCallbacks(run Run) []Callback {
	return []Callback{
		NewCSVLogger(filepath.Join(run.Dir, LogFile)),
		NewTensorBoard(filepath.Join(run.Dir, TensorBoardDir)),
		NewModelCheckpoint(filepath.Join(run.Dir, CheckpointPattern), MetricValLoss),
		NewLearningRateScheduler(run.Schedule),
	}
}

// ********************************** HISTORY **********************************

// History records the logs of every epoch
type History struct {
	BaseCallback
	Epochs  []int
	Metrics map[string][]float64
}

// NewHistory constructor
func NewHistory() *History {
	return &History{Metrics: make(map[string][]float64)}
}

func (h *History) OnTrainBegin(ctx *Context) error {
	h.Epochs = nil
	h.Metrics = make(map[string][]float64)
	return nil
}

func (h *History) OnEpochEnd(ctx *Context, epoch int, logs Logs) error {
	h.Epochs = append(h.Epochs, epoch)
	for k, v := range logs {
		h.Metrics[k] = append(h.Metrics[k], v)
	}
	return nil
}

// ********************************** CSV LOGGER **********************************

// CSVLogger streams the epoch logs to a csv file, overwriting it at train begin
type CSVLogger struct {
	BaseCallback
	Filename string
	file     *os.File
	writer   *csv.Writer
	keys     []string
}

// NewCSVLogger constructor
func NewCSVLogger(filename string) *CSVLogger {
	return &CSVLogger{Filename: filename}
}

func (c *CSVLogger) OnTrainBegin(ctx *Context) error {
	f, err := os.Create(c.Filename)
	if err != nil {
		return err
	}
	c.file = f
	c.writer = csv.NewWriter(f)
	c.keys = nil
	return nil
}

func (c *CSVLogger) OnEpochEnd(ctx *Context, epoch int, logs Logs) error {
	if c.keys == nil {
		for k := range logs {
			c.keys = append(c.keys, k)
		}
		sort.Strings(c.keys)
		if err := c.writer.Write(append([]string{"epoch"}, c.keys...)); err != nil {
			return err
		}
	}

	row := []string{strconv.Itoa(epoch)}
	for _, k := range c.keys {
		row = append(row, strconv.FormatFloat(logs[k], 'g', -1, 64))
	}
	if err := c.writer.Write(row); err != nil {
		return err
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVLogger) OnTrainEnd(ctx *Context) error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.writer.Error()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file = nil
	return err
}

// ********************************** TENSORBOARD **********************************

// TensorBoard writes every epoch metric as a scalar summary
type TensorBoard struct {
	BaseCallback
	LogDir string
	writer *EventWriter
}

// NewTensorBoard constructor
func NewTensorBoard(logDir string) *TensorBoard {
	return &TensorBoard{LogDir: logDir}
}

func (tb *TensorBoard) OnTrainBegin(ctx *Context) error {
	w, err := NewEventWriter(tb.LogDir)
	if err != nil {
		return err
	}
	tb.writer = w
	return nil
}

func (tb *TensorBoard) OnEpochEnd(ctx *Context, epoch int, logs Logs) error {
	keys := make([]string, 0, len(logs))
	for k := range logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := tb.writer.WriteScalar(k, int64(epoch), logs[k]); err != nil {
			return err
		}
	}
	return tb.writer.Flush()
}

func (tb *TensorBoard) OnTrainEnd(ctx *Context) error {
	if tb.writer == nil {
		return nil
	}
	err := tb.writer.Close()
	tb.writer = nil
	return err
}

// ********************************** CHECKPOINT **********************************

// ModelCheckpoint saves the weights whenever the monitored metric reaches a new best.
// Metrics ending in "acc" are maximised, the others minimised.
// Pattern receives the 1-based epoch number.
type ModelCheckpoint struct {
	BaseCallback
	Pattern string
	Monitor string
	best    float64
	Saved   []string
}

// NewModelCheckpoint constructor
func NewModelCheckpoint(pattern, monitor string) *ModelCheckpoint {
	return &ModelCheckpoint{Pattern: pattern, Monitor: monitor}
}

func (mc *ModelCheckpoint) maximise() bool {
	return strings.HasSuffix(mc.Monitor, "acc")
}

func (mc *ModelCheckpoint) OnTrainBegin(ctx *Context) error {
	mc.best = math.Inf(1)
	if mc.maximise() {
		mc.best = math.Inf(-1)
	}
	mc.Saved = nil
	return nil
}

func (mc *ModelCheckpoint) OnEpochEnd(ctx *Context, epoch int, logs Logs) error {
	current, ok := logs[mc.Monitor]
	if !ok {
		log.Warnf("checkpoint: metric %s not available, skipping", mc.Monitor)
		return nil
	}
	improved := current < mc.best
	if mc.maximise() {
		improved = current > mc.best
	}
	if !improved {
		log.Lvlf2("Epoch %05d: %s did not improve from %.5f", epoch+1, mc.Monitor, mc.best)
		return nil
	}

	filename := filepath.Join(filepath.Dir(mc.Pattern), fmt.Sprintf(filepath.Base(mc.Pattern), epoch+1))
	log.Lvlf2("Epoch %05d: %s improved from %.5f to %.5f, saving model to %s", epoch+1, mc.Monitor, mc.best, current, filename)
	mc.best = current
	if err := ctx.Model.SaveWeights(filename); err != nil {
		return err
	}
	mc.Saved = append(mc.Saved, filename)
	return nil
}

// ********************************** LEARNING RATE **********************************

// LearningRateScheduler sets the optimizer learning rate from a schedule before every epoch
type LearningRateScheduler struct {
	BaseCallback
	Schedule schedule.Func
}

// NewLearningRateScheduler constructor
func NewLearningRateScheduler(s schedule.Func) *LearningRateScheduler {
	return &LearningRateScheduler{Schedule: s}
}

func (l *LearningRateScheduler) OnEpochBegin(ctx *Context, epoch int, logs Logs) error {
	if l.Schedule == nil {
		return errors.New("learning rate scheduler without schedule")
	}
	lr := l.Schedule(epoch)
	if !utils.IsFinitePositive(lr) {
		return fmt.Errorf("schedule returned learning rate %v at epoch %d", lr, epoch)
	}
	ctx.Optimizer.SetLearningRate(lr)
	log.Lvlf2("Epoch %05d: LearningRateScheduler (%s) setting learning rate to %g.", epoch+1, ctx.Run.ScheduleName, lr)
	return nil
}
