package optimizers

import (
	"math"

	"github.com/ldsec/capsweep/layers"
)

// AdamConfig holds the Adam hyperparameters
type AdamConfig struct {
	LearningRate float64
	Beta1        float64 // decay rate of the first moment
	Beta2        float64 // decay rate of the second moment
	Epsilon      float64
}

// DefaultAdamConfig returns the usual Adam defaults
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Adam keeps bias-corrected running estimates of the gradient mean and uncentered variance
type Adam struct {
	config AdamConfig
	step   int
	m      map[*layers.Param][]float64
	v      map[*layers.Param][]float64
}

// NewAdam constructor
func NewAdam(config AdamConfig) *Adam {
	return &Adam{
		config: config,
		m:      make(map[*layers.Param][]float64),
		v:      make(map[*layers.Param][]float64),
	}
}

func (o *Adam) Name() string               { return "adam" }
func (o *Adam) LearningRate() float64      { return o.config.LearningRate }
func (o *Adam) SetLearningRate(lr float64) { o.config.LearningRate = lr }

// Step implements Optimizer
func (o *Adam) Step(params []*layers.Param) {
	o.step++
	c := o.config
	t := float64(o.step)
	lrt := c.LearningRate * math.Sqrt(1-math.Pow(c.Beta2, t)) / (1 - math.Pow(c.Beta1, t))

	for _, p := range params {
		m, v := slot(o.m, p), slot(o.v, p)
		each(p, func(k int, w *float64, g float64) {
			m[k] = c.Beta1*m[k] + (1-c.Beta1)*g
			v[k] = c.Beta2*v[k] + (1-c.Beta2)*g*g
			*w -= lrt * m[k] / (math.Sqrt(v[k]) + c.Epsilon)
		})
	}
}
