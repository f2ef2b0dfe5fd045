// Package schedule holds the learning rate schedules selectable in a sweep.
package schedule

import (
	"fmt"
	"math"
	"sort"
)

// Func maps an epoch index (from 0) to the learning rate used during that epoch
type Func func(epoch int) float64

// Epsilon guards InvSqrtDecay at epoch 0
const Epsilon = 1e-7

// ExpDecay: 0.001 * e^(-epoch/10)
func ExpDecay(epoch int) float64 {
	return 0.001 * math.Exp(-float64(epoch)/10.)
}

// InvSqrtDecay: 0.1 * 0.1 / sqrt(epoch + eps)
func InvSqrtDecay(epoch int) float64 {
	initialRate := 0.1
	k := 0.1
	return k * initialRate / math.Sqrt(float64(epoch)+Epsilon)
}

// StepDecay halves 0.1 every 5 epochs, the first drop happens at epoch 4
func StepDecay(epoch int) float64 {
	initialRate := 0.1
	drop := 0.5
	epochsDrop := 5.
	return initialRate * math.Pow(drop, math.Floor(float64(1+epoch)/epochsDrop))
}

var registry = map[string]Func{
	"exp_decay":      ExpDecay,
	"inv_sqrt_decay": InvSqrtDecay,
	"step_decay":     StepDecay,
}

// earlier sweeps named the first two schedules after their lambdas
var aliases = map[string]string{
	"lambda1": "exp_decay",
	"lambda2": "inv_sqrt_decay",
}

// Lookup returns the schedule registered under name or one of its aliases
func Lookup(name string) (Func, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown schedule %q, expected one of %v", name, Names())
	}
	return f, nil
}

// Names lists the canonical schedule names
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
