package render

import "math"

// Empty marks a plot cell with no sample
const Empty = -1

// Plot is a frame rasterized onto a character grid. Cells[row][col] holds
// the index into Frame.Series of the last sample drawn there, or Empty.
// Row 0 is the top of the chart.
type Plot struct {
	Width  int
	Height int
	Cells  [][]int
	X      Range
	Y      Range
}

// Rasterize maps every sample inside the policy's x-range onto a
// width x height grid. The y-range covers the plotted samples only.
func Rasterize(frame Frame, policy AxisPolicy, width, height int) Plot {
	width = max(width, 1)
	height = max(height, 1)

	p := Plot{
		Width:  width,
		Height: height,
		Cells:  make([][]int, height),
		X:      frame.XRange(policy),
	}
	for row := range p.Cells {
		p.Cells[row] = make([]int, width)
		for col := range p.Cells[row] {
			p.Cells[row][col] = Empty
		}
	}
	if !p.X.Valid {
		return p
	}

	for _, s := range frame.Series {
		for _, sample := range s.Samples {
			if p.X.Contains(sample.Ts) {
				p.Y = p.Y.include(sample.Val)
			}
		}
	}
	if !p.Y.Valid {
		return p
	}
	// Flat data still needs a non-zero span to scale against.
	if p.Y.Width() == 0 {
		p.Y.Min -= 0.5
		p.Y.Max += 0.5
	}

	for i, s := range frame.Series {
		for _, sample := range s.Samples {
			if !p.X.Contains(sample.Ts) {
				continue
			}
			col := scale(sample.Ts, p.X, width)
			row := height - 1 - scale(sample.Val, p.Y, height)
			p.Cells[row][col] = i
		}
	}
	return p
}

// scale maps v in r onto [0, n)
func scale(v float64, r Range, n int) int {
	if r.Width() == 0 {
		return 0
	}
	i := int(math.Round((v - r.Min) / r.Width() * float64(n-1)))
	return min(max(i, 0), n-1)
}
