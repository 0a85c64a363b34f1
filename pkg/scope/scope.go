package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/chewxy/math32"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/sample"
	"github.com/itohio/godaq/pkg/view"
)

// Ensure ScopeWidget is a live view.
var _ view.View = (*ScopeWidget)(nil)

// channelColors are cycled through for the channel traces.
var channelColors = []color.RGBA{
	{R: 255, G: 165, B: 0, A: 255},   // Orange
	{R: 100, G: 200, B: 255, A: 255}, // Light blue
	{R: 120, G: 220, B: 120, A: 255}, // Green
	{R: 230, G: 100, B: 200, A: 255}, // Magenta
	{R: 240, G: 230, B: 90, A: 255},  // Yellow
	{R: 200, G: 200, B: 200, A: 255}, // Gray
}

// ScopeWidget is a custom Fyne widget that plots the voltage of every channel
// over the most recent cycles, oscilloscope style.
type ScopeWidget struct {
	widget.BaseWidget

	names []string // Channel names for the legend

	// Data (protected by mu)
	mu      sync.RWMutex
	history *history
	rows    []sample.Reading // Ordered history, reused
	display []sample.Reading // Downsampled rows, reused
	latest  view.Update
	first   int // Cycle index of display[0]
	last    int // Cycle index of the newest row

	// Auto-scaling
	yMin, yMax float32

	// Display settings
	maxDisplayPoints int
}

// New creates a scope showing up to cfg.MaxDisplayPoints cycles of the named channels.
func New(cfg *config.LiveConfig, names []string) *ScopeWidget {
	points := cfg.MaxDisplayPoints
	if points < 2 {
		points = 1000
	}
	s := &ScopeWidget{
		names:            names,
		history:          newHistory(points),
		rows:             make([]sample.Reading, 0, points),
		display:          make([]sample.Reading, 0, points),
		maxDisplayPoints: points,
		yMin:             -1,
		yMax:             1,
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// Render stores the newest reading and schedules a redraw on the Fyne thread.
// It does not block on rendering.
func (s *ScopeWidget) Render(u view.Update) {
	s.mu.Lock()
	s.history.push(u.Cycle, u.Voltage)
	s.rows = s.history.values(s.rows)
	s.display = sample.Downsample(s.display, s.rows, s.maxDisplayPoints)
	s.first = s.history.firstCycle()
	s.last = u.Cycle
	s.latest = view.Update{Cycle: u.Cycle, Voltage: u.Voltage.Clone(), Current: u.Current.Clone()}
	s.yMin, s.yMax = autoScale(s.display)
	s.mu.Unlock()

	// Refresh must run on the main thread
	fyne.Do(s.Refresh)
}

// Clear drops the plotted history.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	s.clear()
	s.mu.Unlock()

	fyne.Do(s.Refresh)
}

// SetChannels replaces the legend names and drops the plotted history.
func (s *ScopeWidget) SetChannels(names []string) {
	s.mu.Lock()
	s.names = names
	s.clear()
	s.mu.Unlock()

	fyne.Do(s.Refresh)
}

func (s *ScopeWidget) clear() {
	s.history.reset()
	s.rows = s.rows[:0]
	s.display = s.display[:0]
	s.latest = view.Update{}
	s.first, s.last = 0, 0
	s.yMin, s.yMax = -1, 1
}

// autoScale returns the Y range covering every value with a 10% margin.
func autoScale(rows []sample.Reading) (float32, float32) {
	first := true
	var lo, hi float32
	for _, row := range rows {
		for _, v := range row {
			f := float32(v)
			if math32.IsNaN(f) || math32.IsInf(f, 0) {
				continue
			}
			if first {
				lo, hi = f, f
				first = false
				continue
			}
			lo = math32.Min(lo, f)
			hi = math32.Max(hi, f)
		}
	}
	if first {
		return -1, 1
	}

	span := hi - lo
	if span < 1e-6 {
		// Flat trace: center it in a fixed window
		span = math32.Max(math32.Abs(hi)*0.1, 1e-3)
		return lo - span, hi + span
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
