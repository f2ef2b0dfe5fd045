package optimizers

import "github.com/ldsec/capsweep/layers"

// SGDConfig holds the stochastic gradient descent hyperparameters
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
}

// DefaultSGDConfig returns the defaults used by the sweeps
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LearningRate: 0.01, Momentum: 0.8}
}

// SGD with momentum: vt = momentum*vt + lr*g, w -= vt
type SGD struct {
	config SGDConfig
	vt     map[*layers.Param][]float64
}

// NewSGD constructor
func NewSGD(config SGDConfig) *SGD {
	return &SGD{config: config, vt: make(map[*layers.Param][]float64)}
}

func (o *SGD) Name() string               { return "sgd" }
func (o *SGD) LearningRate() float64      { return o.config.LearningRate }
func (o *SGD) SetLearningRate(lr float64) { o.config.LearningRate = lr }

// Step implements Optimizer
func (o *SGD) Step(params []*layers.Param) {
	lr, momentum := o.config.LearningRate, o.config.Momentum
	for _, p := range params {
		if momentum <= 0 {
			each(p, func(_ int, w *float64, g float64) { *w -= lr * g })
			continue
		}
		vt := slot(o.vt, p)
		each(p, func(k int, w *float64, g float64) {
			vt[k] = momentum*vt[k] + lr*g
			*w -= vt[k]
		})
	}
}
