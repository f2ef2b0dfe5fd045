// Package sweep trains one capsule network per point of a hyperparameter grid, for every dataset.
package sweep

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	ct "github.com/daviddengcn/go-colortext"
	"github.com/ldsec/capsweep/capsnet"
	"github.com/ldsec/capsweep/schedule"
	"github.com/ldsec/capsweep/training"
	"github.com/ldsec/capsweep/utils"
	gotoml "github.com/pelletier/go-toml"
	"go.dedis.ch/onet/v3/log"
)

// file names at the dataset level
const (
	ModelPlotFile  = "model.png"
	SummaryFile    = "summary.csv"
	HyperparamFile = "hyperparams.toml"
)

// Sweep runs the grid of Config over the datasets served by Loader
type Sweep struct {
	Config Config
	Loader utils.Loader
	// Out receives the console report, os.Stdout when nil
	Out io.Writer
}

// New constructor
func New(cfg Config, loader utils.Loader) *Sweep {
	return &Sweep{Config: cfg, Loader: loader, Out: os.Stdout}
}

// RunReport is the outcome of one combination. Seed initialised the model of the run,
// unless the sweep warm starts.
type RunReport struct {
	Combination Combination
	Dir         string
	Seed        int64
	Result      *training.Result
}

// Run trains every combination of every dataset, in order. The first error aborts the sweep.
func (sw *Sweep) Run() ([]RunReport, error) {
	if err := sw.Config.Validate(); err != nil {
		return nil, err
	}
	if sw.Out == nil {
		sw.Out = os.Stdout
	}
	if err := os.MkdirAll(sw.Config.Root, 0755); err != nil {
		return nil, err
	}

	var reports []RunReport
	for d, dataset := range sw.Config.Datasets {
		fmt.Fprintln(sw.Out, dataset)
		r, err := sw.runDataset(d, dataset)
		if err != nil {
			return reports, fmt.Errorf("dataset %s: %w", dataset, err)
		}
		reports = append(reports, r...)
	}
	return reports, nil
}

func (sw *Sweep) runDataset(index int, dataset string) ([]RunReport, error) {
	cfg := sw.Config
	corpus, err := sw.Loader.Load(dataset)
	if err != nil {
		return nil, err
	}
	log.Lvlf1("%s: %d train, %d dev, %d test samples, vocabulary %d, max length %d, %d classes",
		dataset, corpus.Train.Len(), corpus.Dev.Len(), corpus.Test.Len(), corpus.VocabSize, corpus.MaxLen, corpus.NClasses())

	settings := sw.settings(corpus)
	datasetDir := filepath.Join(cfg.Root, dataset)
	if err := os.MkdirAll(datasetDir, 0755); err != nil {
		return nil, err
	}

	combinations := cfg.Combinations(dataset)
	seedBase := cfg.Seed + int64(index*len(combinations))

	shared, err := capsnet.New(settings, rand.New(rand.NewSource(seedBase)))
	if err != nil {
		return nil, err
	}
	log.Lvl2("\n" + shared.Summary())
	if err := shared.PlotModel(filepath.Join(datasetDir, ModelPlotFile)); err != nil {
		return nil, err
	}

	reports := make([]RunReport, 0, len(combinations))
	for k, c := range combinations {
		dir := c.Path(cfg.Root)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return reports, err
		}

		seed := seedBase + int64(k) + 1
		model := shared
		if !cfg.WarmStart {
			if model, err = capsnet.New(settings, rand.New(rand.NewSource(seed))); err != nil {
				return reports, err
			}
		}
		if err := writeSnapshot(filepath.Join(dir, HyperparamFile), c, seed, cfg.WarmStart, settings); err != nil {
			return reports, err
		}

		sched, err := schedule.Lookup(c.Schedule)
		if err != nil {
			return reports, err
		}
		run := training.Run{
			Dir:          dir,
			Optimizer:    c.Optimizer,
			Epochs:       c.Epochs,
			BatchSize:    c.BatchSize,
			Schedule:     sched,
			ScheduleName: c.Schedule,
			Seed:         seed,
		}
		log.Lvl1("Training", dir)
		result, err := training.Train(model, corpus.Train, corpus.Dev, corpus.Test, run)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", c.DirName(), err)
		}

		ct.Foreground(ct.Green, false)
		fmt.Fprintln(sw.Out, dir)
		fmt.Fprintln(sw.Out, result.Score)
		ct.ResetColor()

		reports = append(reports, RunReport{Combination: c, Dir: dir, Seed: seed, Result: result})
	}

	if err := writeSummary(filepath.Join(datasetDir, SummaryFile), reports); err != nil {
		return reports, err
	}
	return reports, nil
}

func (sw *Sweep) settings(corpus *utils.Corpus) capsnet.Settings {
	m := sw.Config.Model
	s := capsnet.NewSettings(corpus.VocabSize, corpus.MaxLen, corpus.NClasses())
	s.EmbedDim = m.EmbedDim
	s.KernelSize = m.KernelSize
	s.PrimaryCaps = m.PrimaryCaps
	s.PrimaryDim = m.PrimaryDim
	s.ClassDim = m.ClassDim
	s.NumRouting = m.NumRouting
	return s
}

type snapshot struct {
	Run       Combination      `toml:"run"`
	Seed      int64            `toml:"seed"`
	WarmStart bool             `toml:"warm_start"`
	Model     capsnet.Settings `toml:"model"`
}

// writeSnapshot records what a run directory was trained with
func writeSnapshot(filename string, c Combination, seed int64, warmStart bool, s capsnet.Settings) error {
	b, err := gotoml.Marshal(snapshot{Run: c, Seed: seed, WarmStart: warmStart, Model: s})
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0644)
}
