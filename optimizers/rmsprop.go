package optimizers

import (
	"math"

	"github.com/ldsec/capsweep/layers"
)

// RMSpropConfig holds the RMSprop hyperparameters
type RMSpropConfig struct {
	LearningRate float64
	Rho          float64
	Epsilon      float64
}

// DefaultRMSpropConfig returns the usual RMSprop defaults
func DefaultRMSpropConfig() RMSpropConfig {
	return RMSpropConfig{LearningRate: 0.001, Rho: 0.9, Epsilon: 1e-7}
}

// RMSprop divides the gradient by a running average of its magnitude
type RMSprop struct {
	config RMSpropConfig
	v      map[*layers.Param][]float64
}

// NewRMSprop constructor
func NewRMSprop(config RMSpropConfig) *RMSprop {
	return &RMSprop{config: config, v: make(map[*layers.Param][]float64)}
}

func (o *RMSprop) Name() string               { return "rmsprop" }
func (o *RMSprop) LearningRate() float64      { return o.config.LearningRate }
func (o *RMSprop) SetLearningRate(lr float64) { o.config.LearningRate = lr }

// Step implements Optimizer
func (o *RMSprop) Step(params []*layers.Param) {
	c := o.config
	for _, p := range params {
		v := slot(o.v, p)
		each(p, func(k int, w *float64, g float64) {
			v[k] = c.Rho*v[k] + (1-c.Rho)*g*g
			*w -= c.LearningRate * g / (math.Sqrt(v[k]) + c.Epsilon)
		})
	}
}
