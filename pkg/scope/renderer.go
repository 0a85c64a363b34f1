package scope

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
	"github.com/itohio/godaq/pkg/sample"
)

const (
	marginLeft   = float32(60)
	marginRight  = float32(20)
	marginTop    = float32(20)
	marginBottom = float32(40)
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	bg *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plotArea maps cycle/value pairs into widget coordinates.
type plotArea struct {
	x, y, w, h float32
	yMin, yMax float32
	first      int
	last       int
}

func (a plotArea) point(cycle int, v float64) fyne.Position {
	span := float32(a.last - a.first)
	fx := float32(0)
	if span > 0 {
		fx = float32(cycle-a.first) / span
	}
	fy := (float32(v) - a.yMin) / (a.yMax - a.yMin)
	// Keep out-of-range values on the plot border
	fx = math32.Max(0, math32.Min(1, fx))
	fy = math32.Max(0, math32.Min(1, fy))
	return fyne.NewPos(a.x+fx*a.w, a.y+a.h-fy*a.h)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the grid, the traces and the legend.
func (r *scopeRenderer) Refresh() {
	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	s := r.scope
	s.mu.RLock()
	defer s.mu.RUnlock()

	area := plotArea{
		x:     marginLeft,
		y:     marginTop,
		w:     size.Width - marginLeft - marginRight,
		h:     size.Height - marginTop - marginBottom,
		yMin:  s.yMin,
		yMax:  s.yMax,
		first: s.first,
		last:  s.last,
	}

	r.drawGrid(area)
	r.drawTraces(area, s.display, s.rows)
	r.drawLegend(area, s.latest.Voltage)
}

// drawGrid draws the oscilloscope-style grid with voltage and cycle labels.
func (r *scopeRenderer) drawGrid(a plotArea) {
	const numHLines = 8
	for i := range numHLines + 1 {
		y := a.y + float32(i)*a.h/numHLines
		r.addLine(fyne.NewPos(a.x, y), fyne.NewPos(a.x+a.w, y), gridColor, 1)

		value := a.yMax - float32(i)*(a.yMax-a.yMin)/numHLines
		text := canvas.NewText(formatVoltage(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const numVLines = 10
	span := float32(a.last - a.first)
	for i := range numVLines + 1 {
		x := a.x + float32(i)*a.w/numVLines
		r.addLine(fyne.NewPos(x, a.y), fyne.NewPos(x, a.y+a.h), gridColor, 1)

		cycle := a.first + int(math32.Floor(float32(i)*span/numVLines+0.5))
		text := canvas.NewText(strconv.Itoa(cycle), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.y+a.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawTraces draws one line per channel through the displayed rows.
func (r *scopeRenderer) drawTraces(a plotArea, display, rows []sample.Reading) {
	if len(display) < 2 {
		return
	}
	// Display rows are decimated evenly from the full history
	step := float32(len(rows)-1) / float32(len(display)-1)

	channels := len(display[len(display)-1])
	for c := range channels {
		col := channelColors[c%len(channelColors)]
		prev := fyne.Position{}
		for i, row := range display {
			if c >= len(row) {
				continue
			}
			cycle := a.first + int(math32.Floor(float32(i)*step+0.5))
			p := a.point(cycle, row[c])
			if i > 0 {
				r.addLine(prev, p, col, 1.5)
			}
			prev = p
		}
	}
}

// drawLegend lists every channel with its latest value.
func (r *scopeRenderer) drawLegend(a plotArea, latest []float64) {
	for c, name := range r.scope.names {
		label := name
		if c < len(latest) {
			label += " " + formatVoltage(float32(latest[c]))
		}
		text := canvas.NewText(label, channelColors[c%len(channelColors)])
		text.TextSize = 11
		text.Alignment = fyne.TextAlignLeading
		text.Move(fyne.NewPos(a.x+10, a.y+10+float32(c)*14))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) addLine(p1, p2 fyne.Position, col color.Color, width float32) {
	line := canvas.NewLine(col)
	line.Position1 = p1
	line.Position2 = p2
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

func formatVoltage(v float32) string {
	if math32.Abs(v) < 0.0005 {
		return "0.000V"
	}
	return strconv.FormatFloat(float64(v), 'f', 3, 32) + "V"
}
