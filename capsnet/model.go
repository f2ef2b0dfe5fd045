// Package capsnet assembles a capsule network text classifier:
// embedding -> conv1d (relu) -> primary capsules -> class capsules (dynamic routing) -> capsule lengths.
package capsnet

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ldsec/capsweep/layers"
	"github.com/ldsec/capsweep/utils"
	"gonum.org/v1/gonum/mat"
)

// CapsNet is a capsule network over padded token sequences
type CapsNet struct {
	settings Settings
	embed    *layers.Embedding
	conv     *layers.Conv1D
	primary  *layers.PrimaryCaps
	class    *layers.ClassCaps
}

// New initialises a CapsNet with weights drawn from rng
func New(s Settings, rng *rand.Rand) (*CapsNet, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &CapsNet{
		settings: s,
		embed:    layers.NewEmbedding(rng, s.VocabSize, s.EmbedDim),
		conv:     layers.NewConv1D(rng, s.EmbedDim, s.Filters(), s.KernelSize),
		primary:  &layers.PrimaryCaps{NCaps: s.PrimaryCaps, Dim: s.PrimaryDim},
		class:    layers.NewClassCaps(rng, s.NClasses, s.PrimaryCaps, s.PrimaryDim, s.ClassDim, s.NumRouting),
	}, nil
}

// Settings returns the shape of the network
func (net *CapsNet) Settings() Settings {
	return net.settings
}

// Forward computes the class probabilities (capsule lengths, nsamples x nclasses) of X (nsamples x maxLen)
func (net *CapsNet) Forward(X mat.Matrix) (*mat.Dense, error) {
	if _, c := X.Dims(); c != net.settings.MaxLen {
		return nil, fmt.Errorf("input has %d tokens per sample, model expects %d", c, net.settings.MaxLen)
	}

	out1, err := net.embed.Forward(X)
	if err != nil {
		return nil, err
	}
	out2, err := net.conv.Forward(out1)
	if err != nil {
		return nil, err
	}
	out3, err := net.primary.Forward(out2)
	if err != nil {
		return nil, err
	}
	return net.class.Forward(out3)
}

// Backward propagates the loss gradient with respect to the output of the last Forward
// and accumulates the gradient of every parameter
func (net *CapsNet) Backward(gradient *mat.Dense) {
	delta3 := net.class.Backward(gradient)
	delta2 := net.primary.Backward(delta3)
	delta1 := net.conv.Backward(delta2)
	net.embed.Backward(delta1)
}

// Predict runs Forward in batches of batchSize
func (net *CapsNet) Predict(X *mat.Dense, batchSize int) (*mat.Dense, error) {
	nsamples, maxLen := X.Dims()
	if batchSize <= 0 {
		batchSize = nsamples
	}
	output := mat.NewDense(nsamples, net.settings.NClasses, nil)
	for start := 0; start < nsamples; start += batchSize {
		end := start + batchSize
		if end > nsamples {
			end = nsamples
		}
		probs, err := net.Forward(X.Slice(start, end, 0, maxLen))
		if err != nil {
			return nil, err
		}
		for r := start; r < end; r++ {
			output.SetRow(r, probs.RawRowView(r-start))
		}
	}
	return output, nil
}

// Params lists every trainable parameter, in a fixed order
func (net *CapsNet) Params() []*layers.Param {
	var params []*layers.Param
	params = append(params, net.embed.Params()...)
	params = append(params, net.conv.Params()...)
	params = append(params, net.class.Params()...)
	return params
}

// ZeroGrad resets every accumulated gradient
func (net *CapsNet) ZeroGrad() {
	for _, p := range net.Params() {
		p.ZeroGrad()
	}
}

// Layer is one row of the model summary
type Layer struct {
	Name   string
	Output string
	Params int
}

// Layers describes the network layer by layer
func (net *CapsNet) Layers() []Layer {
	s := net.settings
	npos := net.conv.OutLen(s.MaxLen)
	convParams := 0
	for _, p := range net.conv.Params() {
		convParams += p.Size()
	}
	return []Layer{
		{Name: "input", Output: fmt.Sprintf("(%d)", s.MaxLen)},
		{Name: "embedding", Output: fmt.Sprintf("(%d, %d)", s.MaxLen, s.EmbedDim), Params: net.embed.Params()[0].Size()},
		{Name: "conv1d", Output: fmt.Sprintf("(%d, %d)", npos, s.Filters()), Params: convParams},
		{Name: "primarycaps", Output: fmt.Sprintf("(%d, %d)", npos*s.PrimaryCaps, s.PrimaryDim)},
		{Name: fmt.Sprintf("classcaps x%d routing", s.NumRouting), Output: fmt.Sprintf("(%d, %d)", s.NClasses, s.ClassDim), Params: net.class.Params()[0].Size()},
		{Name: "length", Output: fmt.Sprintf("(%d)", s.NClasses)},
	}
}

// Summary is a printable table of the layers and their parameter counts
func (net *CapsNet) Summary() string {
	var b strings.Builder
	total := 0
	fmt.Fprintf(&b, "%-28s %-16s %10s\n", "Layer", "Output Shape", "Param #")
	fmt.Fprintln(&b, strings.Repeat("=", 56))
	for _, l := range net.Layers() {
		fmt.Fprintf(&b, "%-28s %-16s %10d\n", l.Name, l.Output, l.Params)
		total += l.Params
	}
	fmt.Fprintln(&b, strings.Repeat("=", 56))
	fmt.Fprintf(&b, "Total params: %d\n", total)
	return b.String()
}

// PlotModel renders the architecture diagram to filename
func (net *CapsNet) PlotModel(filename string) error {
	ls := net.Layers()
	blocks := make([]string, len(ls))
	for i, l := range ls {
		blocks[i] = fmt.Sprintf("%s  %s", l.Name, l.Output)
	}
	return utils.PlotArchitecture(filename, "CapsNet", blocks)
}
