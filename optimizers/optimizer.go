// Package optimizers implements the first-order update rules a training run can select by name.
package optimizers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ldsec/capsweep/layers"
)

// Optimizer updates parameters from their accumulated gradients
type Optimizer interface {
	// Name under which the optimizer is registered
	Name() string
	LearningRate() float64
	SetLearningRate(lr float64)
	// Step applies one update to every parameter
	Step(params []*layers.Param)
}

var registry = map[string]func() Optimizer{
	"sgd":     func() Optimizer { return NewSGD(DefaultSGDConfig()) },
	"adam":    func() Optimizer { return NewAdam(DefaultAdamConfig()) },
	"nadam":   func() Optimizer { return NewNadam(DefaultNadamConfig()) },
	"rmsprop": func() Optimizer { return NewRMSprop(DefaultRMSpropConfig()) },
}

// New returns a fresh optimizer with default hyperparameters
func New(name string) (Optimizer, error) {
	ctor, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer %q, expected one of %v", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered optimizers
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// slot returns the state buffer of p in m, allocating it on first use
func slot(m map[*layers.Param][]float64, p *layers.Param) []float64 {
	s, ok := m[p]
	if !ok {
		s = make([]float64, p.Size())
		m[p] = s
	}
	return s
}

// each calls f on the flat index, weight and gradient of every element of p
func each(p *layers.Param, f func(k int, w *float64, g float64)) {
	r, c := p.W.Dims()
	k := 0
	for i := 0; i < r; i++ {
		w := p.W.RawRowView(i)
		g := p.Grad.RawRowView(i)
		for j := 0; j < c; j++ {
			f(k, &w[j], g[j])
			k++
		}
	}
}
