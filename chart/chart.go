// Package chart draws a coverage chart of a run: one row per job showing the
// scanned window colored by the job's state and the cells found in it.
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hb9tf/cellscan/scan"
)

var (
	// Colors defining the gradient used for cell markers. The higher the index, the stronger.
	gradient = []color.RGBA{
		{0, 0, 255, 255},   // blue
		{0, 255, 255, 255}, // cyan
		{0, 255, 0, 255},   // green
		{255, 255, 0, 255}, // yellow
		{255, 0, 0, 255},   // red
	}

	stateColors = map[scan.State]color.RGBA{
		scan.StateDone:         {170, 220, 170, 255},
		scan.StateSkipped:      {210, 210, 210, 255},
		scan.StateScanFailed:   {240, 150, 150, 255},
		scan.StateRecordFailed: {240, 190, 130, 255},
		scan.StateTimedOut:     {200, 150, 220, 255},
		scan.StateCancelled:    {160, 160, 160, 255},
	}

	gridColor           = color.RGBA{0, 0, 0, 255}       // black
	gridBackgroundColor = color.RGBA{255, 255, 255, 255} // white

	expSuffixLookup = map[int]string{
		0: "Hz",  // 10^0
		1: "kHz", // 10^3
		2: "MHz", // 10^6
		3: "GHz", // 10^9
		4: "THz", // 10^12
	}

	errEmpty = errors.New("nothing to draw")
)

const (
	gridMarginTop  = 20  // pixels
	gridMarginLeft = 160 // pixels
	gridTickLen    = 10  // pixel
	gridMinStepX   = 100 // pixels

	defaultWidth     = 1000
	defaultRowHeight = 20
	rowGap           = 4
	markerWidth      = 3
)

type Options struct {
	// Width of the plot area in pixels.
	Width int
	// RowHeight in pixels.
	RowHeight int
}

type row struct {
	label      string
	start, end int64
	state      scan.State
	cells      []scan.Cell
}

// GetColor maps a level in [0, 1] onto the marker gradient.
func GetColor(lvl float64) color.RGBA {
	lvl = math.Max(0, math.Min(1, lvl))
	pos := lvl * float64(len(gradient)-1)
	i := int(pos)
	if i >= len(gradient)-1 {
		return gradient[len(gradient)-1]
	}
	fract := pos - float64(i)
	a, b := gradient[i], gradient[i+1]
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*fract)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func GetReadableFreq(freq int64) string {
	exp := 0
	for f := float64(freq); f >= 1000; f = f / 1000.0 {
		exp += 1
	}
	suffix, ok := expSuffixLookup[exp]
	if !ok {
		return fmt.Sprintf("%d Hz", freq)
	}
	return fmt.Sprintf("%.2f %s", float64(freq)/math.Pow(1000, float64(exp)), suffix)
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func findGridStepSize(step int) int {
	for step > gridMinStepX {
		n := step / 2
		if n < gridMinStepX {
			return step
		}
		step = n
	}
	return step
}

func drawString(canvas *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(gridColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func rows(s *scan.Summary) []row {
	var out []row
	label := func(j scan.Job) string {
		return fmt.Sprintf("%s %.1f-%.1f", j.Band.Provider, float64(j.Start)/1e6, float64(j.End)/1e6)
	}
	for _, r := range s.Results {
		out = append(out, row{label: label(r.Job), start: r.Job.Start, end: r.Job.End, state: r.Status, cells: r.Cells})
	}
	for _, j := range s.Skipped {
		out = append(out, row{label: label(j), start: j.Start, end: j.End, state: scan.StateSkipped})
	}
	return out
}

// Render draws the chart for s.
func Render(s *scan.Summary, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = defaultRowHeight
	}
	rs := rows(s)
	if len(rs) == 0 {
		return nil, errEmpty
	}

	lowFreq, highFreq := int64(math.MaxInt64), int64(0)
	minDB, maxDB := math.Inf(1), math.Inf(-1)
	for _, r := range rs {
		lowFreq = min(lowFreq, r.start)
		highFreq = max(highFreq, r.end)
		for _, c := range r.cells {
			minDB = math.Min(minDB, c.RxPower)
			maxDB = math.Max(maxDB, c.RxPower)
		}
	}
	if highFreq <= lowFreq {
		return nil, fmt.Errorf("invalid frequency range %d-%d", lowFreq, highFreq)
	}
	toX := func(freq int64) int {
		return gridMarginLeft + int((freq-lowFreq)*int64(opts.Width-1)/(highFreq-lowFreq))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, gridMarginLeft+opts.Width, gridMarginTop+len(rs)*opts.RowHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{gridBackgroundColor}, image.Point{}, draw.Src)

	for i, r := range rs {
		top := gridMarginTop + i*opts.RowHeight + rowGap/2
		bottom := top + opts.RowHeight - rowGap
		bar := image.Rect(toX(r.start), top, toX(r.end)+1, bottom)
		fill, ok := stateColors[r.state]
		if !ok {
			fill = gridBackgroundColor
		}
		draw.Draw(canvas, bar, &image.Uniform{fill}, image.Point{}, draw.Src)

		for _, c := range r.cells {
			lvl := 1.0
			if maxDB > minDB {
				lvl = (c.RxPower - minDB) / (maxDB - minDB)
			}
			x := toX(c.FreqCenter)
			marker := image.Rect(x-markerWidth/2, top, x+markerWidth/2+1, bottom).Intersect(bar)
			draw.Draw(canvas, marker, &image.Uniform{GetColor(lvl)}, image.Point{}, draw.Src)
		}

		drawTick(canvas, image.Point{gridMarginLeft - gridTickLen, top + opts.RowHeight/2 - rowGap/2}, gridTickLen, true)
		drawString(canvas, 5, bottom-2, r.label)
	}

	// Draw X ticks.
	xStep := findGridStepSize(opts.Width)
	for i := 0; i < opts.Width; i += xStep {
		drawTick(canvas, image.Point{gridMarginLeft + i, gridMarginTop - gridTickLen}, gridTickLen, false)
		freq := lowFreq + (int64(i)*(highFreq-lowFreq))/int64(opts.Width)
		drawString(canvas, gridMarginLeft+i+5, gridMarginTop-2, GetReadableFreq(freq))
	}

	return canvas, nil
}
