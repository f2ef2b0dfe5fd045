package capsnet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// WeightTensor is one serialized parameter
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// WeightsFile is the on-disk layout of SaveWeights
type WeightsFile struct {
	Settings Settings       `json:"settings"`
	Weights  []WeightTensor `json:"weights"`
	SavedAt  time.Time      `json:"saved_at"`
}

// SaveWeights writes every parameter to filename, replacing any existing file
func (net *CapsNet) SaveWeights(filename string) error {
	wf := WeightsFile{Settings: net.settings, SavedAt: time.Now()}
	for _, p := range net.Params() {
		r, c := p.W.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.W.RawRowView(i)...)
		}
		wf.Weights = append(wf.Weights, WeightTensor{Name: p.Name, Shape: []int{r, c}, Data: data})
	}

	b, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("saving weights: %w", err)
	}
	return nil
}

// LoadWeights restores the parameters saved by SaveWeights, the network shapes must match
func (net *CapsNet) LoadWeights(filename string) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var wf WeightsFile
	if err := json.Unmarshal(b, &wf); err != nil {
		return fmt.Errorf("decoding %s: %w", filename, err)
	}
	if wf.Settings != net.settings {
		return fmt.Errorf("%s was saved from a network with settings %+v", filename, wf.Settings)
	}

	params := net.Params()
	if len(wf.Weights) != len(params) {
		return fmt.Errorf("%s holds %d tensors, network has %d", filename, len(wf.Weights), len(params))
	}
	for i, p := range params {
		t := wf.Weights[i]
		r, c := p.W.Dims()
		if t.Name != p.Name || len(t.Shape) != 2 || t.Shape[0] != r || t.Shape[1] != c || len(t.Data) != r*c {
			return fmt.Errorf("tensor %q does not match parameter %q (%d x %d)", t.Name, p.Name, r, c)
		}
		for row := 0; row < r; row++ {
			p.W.SetRow(row, t.Data[row*c:(row+1)*c])
		}
	}
	return nil
}
