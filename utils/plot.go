package utils

import (
	"errors"
	"fmt"
	"math"

	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// PlotHistory draws a train and a validation curve against the epoch and saves it to filename.
// The image format follows the file extension.
func PlotHistory(filename, title, ylabel string, train, valid []float64, trainName, validName string) error {
	if len(train) == 0 {
		return errors.New("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Legend.Left = true

	if err := plotutil.AddLines(p, trainName, epochXYs(train), validName, epochXYs(valid)); err != nil {
		return err
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	return nil
}

// epochXYs skips the non-finite values, the plotter rejects them
func epochXYs(v []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(v))
	for i, y := range v {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			log.Warnf("epoch %d: not plotting %v", i, y)
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: y})
	}
	return pts
}

// PlotArchitecture draws blocks top to bottom, joined by edges, and saves the diagram to filename
func PlotArchitecture(filename, title string, blocks []string) error {
	n := len(blocks)
	if n == 0 {
		return errors.New("no layers to draw")
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.X.Min, p.X.Max = -1, 1
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5

	pts := make(plotter.XYs, n)
	for i := range blocks {
		pts[i].Y = float64(n - 1 - i)
	}

	for i := 0; i+1 < n; i++ {
		edge, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: pts[i].Y - 0.3},
			{X: 0, Y: pts[i+1].Y + 0.3},
		})
		if err != nil {
			return err
		}
		p.Add(edge)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: blocks})
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)

	if err := p.Save(6*vg.Inch, vg.Length(n)*vg.Inch, filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	return nil
}
