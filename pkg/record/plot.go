package record

import (
	"fmt"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot renders the corrected series of every channel into <Dir>/<label>.png.
type Plot struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewPlot creates a plot sink with the default 14x8 inch canvas.
func NewPlot(dir string) Plot {
	return Plot{Dir: dir, Width: 14 * vg.Inch, Height: 8 * vg.Inch}
}

// Path returns the image path for label.
func (p Plot) Path(label string) string {
	return filepath.Join(p.Dir, label+".png")
}

func (p Plot) Write(s Session) error {
	if len(s.Corrected) == 0 {
		return nil
	}

	pl := plot.New()
	pl.Title.Text = s.Label
	pl.X.Label.Text = "Cycle"
	pl.Y.Label.Text = "Voltage (V)"
	pl.Legend.Top = true
	pl.Add(plotter.NewGrid())

	lines := make([]interface{}, 0, 2*s.Channels)
	for c := range s.Channels {
		xys := make(plotter.XYs, len(s.Corrected))
		for i, row := range s.Corrected {
			xys[i].X = float64(i)
			xys[i].Y = row[c]
		}
		lines = append(lines, "V"+strconv.Itoa(c+1), xys)
	}
	if err := plotutil.AddLines(pl, lines...); err != nil {
		return fmt.Errorf("failed to add lines: %w", err)
	}

	path := p.Path(s.Label)
	if err := pl.Save(p.Width, p.Height, path); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
