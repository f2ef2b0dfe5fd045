package optimizers

import (
	"math"

	"github.com/ldsec/capsweep/layers"
)

// NadamConfig holds the Nesterov-accelerated Adam hyperparameters
type NadamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultNadamConfig returns the usual Nadam defaults
func DefaultNadamConfig() NadamConfig {
	return NadamConfig{LearningRate: 0.002, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Nadam is Adam with a Nesterov look-ahead on the first moment
type Nadam struct {
	config NadamConfig
	step   int
	m      map[*layers.Param][]float64
	v      map[*layers.Param][]float64
}

// NewNadam constructor
func NewNadam(config NadamConfig) *Nadam {
	return &Nadam{
		config: config,
		m:      make(map[*layers.Param][]float64),
		v:      make(map[*layers.Param][]float64),
	}
}

func (o *Nadam) Name() string               { return "nadam" }
func (o *Nadam) LearningRate() float64      { return o.config.LearningRate }
func (o *Nadam) SetLearningRate(lr float64) { o.config.LearningRate = lr }

// Step implements Optimizer
func (o *Nadam) Step(params []*layers.Param) {
	o.step++
	c := o.config
	t := float64(o.step)
	b1t := 1 - math.Pow(c.Beta1, t)
	b1next := 1 - math.Pow(c.Beta1, t+1)
	b2t := 1 - math.Pow(c.Beta2, t)

	for _, p := range params {
		m, v := slot(o.m, p), slot(o.v, p)
		each(p, func(k int, w *float64, g float64) {
			m[k] = c.Beta1*m[k] + (1-c.Beta1)*g
			v[k] = c.Beta2*v[k] + (1-c.Beta2)*g*g
			mhat := c.Beta1*m[k]/b1next + (1-c.Beta1)*g/b1t
			vhat := v[k] / b2t
			*w -= c.LearningRate * mhat / (math.Sqrt(vhat) + c.Epsilon)
		})
	}
}
