package sweep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Datasets, 7)
	require.Len(t, cfg.Combinations("MR"), 24)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.toml")
	content := `
root = "out"
datasets = ["SST-2"]
optimizers = ["rmsprop", "sgd"]
schedules = ["lambda1"]

[model]
max_len = 40
num_routing = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.Root)
	require.Equal(t, []string{"SST-2"}, cfg.Datasets)
	require.Equal(t, []string{"rmsprop", "sgd"}, cfg.Optimizers)
	require.Equal(t, []int{10, 20}, cfg.Epochs)
	require.Equal(t, 40, cfg.Model.MaxLen)
	require.Equal(t, 2, cfg.Model.NumRouting)
	require.Equal(t, 50, cfg.Model.EmbedDim)

	require.NoError(t, os.WriteFile(path, []byte(`optimizers = ["adagrad"]`), 0644))
	_, err = LoadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`epochs = [`), 0644))
	_, err = LoadConfig(path)
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"empty root":      func(c *Config) { c.Root = "" },
		"no datasets":     func(c *Config) { c.Datasets = nil },
		"comma":           func(c *Config) { c.Datasets = []string{"a,b"} },
		"slash":           func(c *Config) { c.Datasets = []string{"a/b"} },
		"dot dot":         func(c *Config) { c.Datasets = []string{".."} },
		"unknown sched":   func(c *Config) { c.Schedules = []string{"cosine"} },
		"zero epochs":     func(c *Config) { c.Epochs = []int{0} },
		"negative batch":  func(c *Config) { c.BatchSizes = []int{-1} },
		"equals in name":  func(c *Config) { c.Datasets = []string{"o=x"} },
		"unknown optimiz": func(c *Config) { c.Optimizers = []string{"adagrad"} },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
	}
}

func TestDirNameInjective(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Optimizers = []string{"adam", "nadam", "sgd", "rmsprop"}
	cfg.Epochs = []int{1, 10, 11, 110}
	cfg.BatchSizes = []int{1, 10, 11, 110}
	cfg.Schedules = []string{"exp_decay", "inv_sqrt_decay", "step_decay", "lambda1"}

	seen := make(map[string]Combination)
	for _, dataset := range cfg.Datasets {
		for _, c := range cfg.Combinations(dataset) {
			p := c.Path("multi")
			prev, ok := seen[p]
			require.False(t, ok, "%+v and %+v share %s", prev, c, p)
			seen[p] = c
		}
	}
	require.Len(t, seen, 7*4*4*4*4)
	require.Equal(t, filepath.Join("multi", "MR", "o=adam,e=10,bz=200,s=step_decay"),
		Combination{Dataset: "MR", Optimizer: "adam", Epochs: 10, BatchSize: 200, Schedule: "step_decay"}.Path("multi"))
}

func TestDefaultScheduleNames(t *testing.T) {
	combos := DefaultConfig().Combinations("MR")
	require.Equal(t, "o=adam,e=10,bz=200,s=lambda1", combos[0].DirName())
	require.Equal(t, "o=adam,e=10,bz=200,s=lambda2", combos[1].DirName())
	require.Equal(t, "o=adam,e=10,bz=200,s=step_decay", combos[2].DirName())
}
