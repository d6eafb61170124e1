package render

import (
	"testing"

	"github.com/yourorg/liveview/internal/buffer"
)

func TestRasterizeCorners(t *testing.T) {
	frame := BuildFrame(fakeSource{
		1: {{Ts: 0, Val: 0}, {Ts: 10, Val: 10}},
	}, Options{})

	p := Rasterize(frame, AxisUnion, 11, 6)
	if p.Width != 11 || p.Height != 6 {
		t.Fatalf("unexpected size %dx%d", p.Width, p.Height)
	}
	if p.Cells[5][0] != 0 {
		t.Fatal("expected oldest, lowest sample in the bottom-left cell")
	}
	if p.Cells[0][10] != 0 {
		t.Fatal("expected newest, highest sample in the top-right cell")
	}

	filled := 0
	for _, row := range p.Cells {
		for _, c := range row {
			if c != Empty {
				filled++
			}
		}
	}
	if filled != 2 {
		t.Fatalf("expected 2 filled cells, got %d", filled)
	}
}

func TestRasterizeIntersectionClipsSeries(t *testing.T) {
	frame := BuildFrame(fakeSource{
		1: {{Ts: 0, Val: 100}, {Ts: 5, Val: 1}, {Ts: 10, Val: 2}},
		2: {{Ts: 5, Val: 3}, {Ts: 10, Val: 4}, {Ts: 20, Val: -100}},
	}, Options{})

	p := Rasterize(frame, AxisIntersection, 20, 10)
	if p.X != (Range{Min: 5, Max: 10, Valid: true}) {
		t.Fatalf("unexpected x-range %+v", p.X)
	}
	if p.Y.Min != 1 || p.Y.Max != 4 {
		t.Fatalf("expected y-range from clipped samples only, got %+v", p.Y)
	}

	union := Rasterize(frame, AxisUnion, 20, 10)
	if union.Y.Min != -100 || union.Y.Max != 100 {
		t.Fatalf("unexpected union y-range %+v", union.Y)
	}
}

func TestRasterizeFlatAndEmpty(t *testing.T) {
	flat := BuildFrame(fakeSource{1: {{Ts: 3, Val: 7}}}, Options{})
	p := Rasterize(flat, AxisUnion, 4, 3)
	if p.Y.Width() != 1 {
		t.Fatalf("expected a padded y-range, got %+v", p.Y)
	}
	if p.Cells[1][0] != 0 {
		t.Fatalf("expected a single centered point, got %v", p.Cells)
	}

	empty := Rasterize(Frame{}, AxisUnion, 0, 0)
	if empty.Width != 1 || empty.Height != 1 || empty.Cells[0][0] != Empty {
		t.Fatalf("unexpected empty plot %+v", empty)
	}
}

func TestRasterizeLaterSeriesWins(t *testing.T) {
	same := []buffer.Sample{{Ts: 0, Val: 0}, {Ts: 1, Val: 1}}
	frame := BuildFrame(fakeSource{1: same, 2: same}, Options{})
	p := Rasterize(frame, AxisUnion, 2, 2)
	if p.Cells[1][0] != 1 || p.Cells[0][1] != 1 {
		t.Fatalf("expected series 1 drawn over series 0, got %v", p.Cells)
	}
}
