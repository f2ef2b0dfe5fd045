package sweep

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ldsec/capsweep/optimizers"
	"github.com/ldsec/capsweep/schedule"
)

// Config is the sweep grid and where to read and write
type Config struct {
	Root       string      `toml:"root"`
	DataDir    string      `toml:"data_dir"`
	Datasets   []string    `toml:"datasets"`
	Optimizers []string    `toml:"optimizers"`
	Epochs     []int       `toml:"epochs"`
	BatchSizes []int       `toml:"batch_sizes"`
	Schedules  []string    `toml:"schedules"`
	Seed       int64       `toml:"seed"`
	WarmStart  bool        `toml:"warm_start"`
	Model      ModelConfig `toml:"model"`
}

// ModelConfig holds the layer sizes shared by every run; MaxLen > 0 truncates the sequences
type ModelConfig struct {
	EmbedDim    int `toml:"embed_dim"`
	KernelSize  int `toml:"kernel_size"`
	PrimaryCaps int `toml:"primary_caps"`
	PrimaryDim  int `toml:"primary_dim"`
	ClassDim    int `toml:"class_dim"`
	NumRouting  int `toml:"num_routing"`
	MaxLen      int `toml:"max_len"`
}

// DefaultConfig is the full text-classification sweep. The schedules keep the names
// lambda1 and lambda2 so run directories match earlier sweeps.
func DefaultConfig() Config {
	return Config{
		Root:       "./multi",
		DataDir:    "./data",
		Datasets:   []string{"MR", "SST-1", "SST-2", "SUBJ", "TREC", "ProcCons", "IMDB"},
		Optimizers: []string{"adam", "nadam"},
		Epochs:     []int{10, 20},
		BatchSizes: []int{200, 500},
		Schedules:  []string{"lambda1", "lambda2", "step_decay"},
		Seed:       1,
		Model: ModelConfig{
			EmbedDim:    50,
			KernelSize:  3,
			PrimaryCaps: 8,
			PrimaryDim:  8,
			ClassDim:    16,
			NumRouting:  3,
		},
	}
}

// LoadConfig reads a toml file on top of DefaultConfig, keys absent from the file keep their default
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the grid. Names end up in directory names and must not contain
// the separators of the run directory format.
func (cfg Config) Validate() error {
	if cfg.Root == "" {
		return errors.New("root is empty")
	}
	lists := map[string]int{
		"datasets":    len(cfg.Datasets),
		"optimizers":  len(cfg.Optimizers),
		"epochs":      len(cfg.Epochs),
		"batch_sizes": len(cfg.BatchSizes),
		"schedules":   len(cfg.Schedules),
	}
	for name, n := range lists {
		if n == 0 {
			return fmt.Errorf("%s is empty", name)
		}
	}

	for _, d := range cfg.Datasets {
		if err := checkName("dataset", d); err != nil {
			return err
		}
	}
	for _, o := range cfg.Optimizers {
		if err := checkName("optimizer", o); err != nil {
			return err
		}
		if _, err := optimizers.New(o); err != nil {
			return err
		}
	}
	for _, s := range cfg.Schedules {
		if err := checkName("schedule", s); err != nil {
			return err
		}
		if _, err := schedule.Lookup(s); err != nil {
			return err
		}
	}
	for _, e := range cfg.Epochs {
		if e <= 0 {
			return fmt.Errorf("epochs must be positive, got %d", e)
		}
	}
	for _, bz := range cfg.BatchSizes {
		if bz <= 0 {
			return fmt.Errorf("batch sizes must be positive, got %d", bz)
		}
	}
	return nil
}

func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	if strings.ContainsAny(name, ",=/\\") {
		return fmt.Errorf("%s name %q must not contain any of , = / \\", kind, name)
	}
	return nil
}
