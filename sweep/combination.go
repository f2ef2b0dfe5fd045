package sweep

import (
	"fmt"
	"path/filepath"
)

// Combination is one point of the hyperparameter grid
type Combination struct {
	Dataset   string `toml:"dataset"`
	Optimizer string `toml:"optimizer"`
	Epochs    int    `toml:"epochs"`
	BatchSize int    `toml:"batch_size"`
	Schedule  string `toml:"schedule"`
}

// DirName encodes the four hyperparameters, e.g. "o=adam,e=10,bz=200,s=step_decay"
func (c Combination) DirName() string {
	return fmt.Sprintf("o=%s,e=%d,bz=%d,s=%s", c.Optimizer, c.Epochs, c.BatchSize, c.Schedule)
}

// Path is the run directory of c under root
func (c Combination) Path(root string) string {
	return filepath.Join(root, c.Dataset, c.DirName())
}

// Combinations enumerates the grid of dataset in nested order optimizer -> epochs -> batch size -> schedule
func (cfg Config) Combinations(dataset string) []Combination {
	var out []Combination
	for _, o := range cfg.Optimizers {
		for _, e := range cfg.Epochs {
			for _, bz := range cfg.BatchSizes {
				for _, s := range cfg.Schedules {
					out = append(out, Combination{
						Dataset:   dataset,
						Optimizer: o,
						Epochs:    e,
						BatchSize: bz,
						Schedule:  s,
					})
				}
			}
		}
	}
	return out
}
