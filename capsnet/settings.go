package capsnet

import "fmt"

// Settings store the capsule network shape
type Settings struct {
	VocabSize   int `toml:"vocab_size"`
	MaxLen      int `toml:"max_len"`
	NClasses    int `toml:"n_classes"`
	EmbedDim    int `toml:"embed_dim"`
	KernelSize  int `toml:"kernel_size"`
	PrimaryCaps int `toml:"primary_caps"`
	PrimaryDim  int `toml:"primary_dim"`
	ClassDim    int `toml:"class_dim"`
	NumRouting  int `toml:"num_routing"`
}

// NewSettings constructor, with the layer sizes used for the text sweeps
func NewSettings(vocabSize, maxLen, nclasses int) Settings {
	return Settings{
		VocabSize:   vocabSize,
		MaxLen:      maxLen,
		NClasses:    nclasses,
		EmbedDim:    50,
		KernelSize:  3,
		PrimaryCaps: 8,
		PrimaryDim:  8,
		ClassDim:    16,
		NumRouting:  3,
	}
}

// Validate checks that every size is usable
func (s Settings) Validate() error {
	positive := map[string]int{
		"vocab size":          s.VocabSize,
		"max length":          s.MaxLen,
		"embedding dim":       s.EmbedDim,
		"kernel size":         s.KernelSize,
		"primary capsules":    s.PrimaryCaps,
		"primary capsule dim": s.PrimaryDim,
		"class capsule dim":   s.ClassDim,
		"routing iterations":  s.NumRouting,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if s.NClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", s.NClasses)
	}
	if s.MaxLen < s.KernelSize {
		return fmt.Errorf("max length %d shorter than kernel size %d", s.MaxLen, s.KernelSize)
	}
	return nil
}

// Filters is the number of convolution channels feeding the primary capsules
func (s Settings) Filters() int {
	return s.PrimaryCaps * s.PrimaryDim
}
