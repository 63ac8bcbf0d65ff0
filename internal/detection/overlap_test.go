package detection

import (
	"math"
	"testing"
)

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Region
		expected float64
	}{
		{
			name:     "disjoint",
			a:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			b:        Region{X: 20, Y: 20, Width: 5, Height: 5},
			expected: 0,
		},
		{
			name:     "identical",
			a:        Region{X: 3, Y: 4, Width: 10, Height: 7},
			b:        Region{X: 3, Y: 4, Width: 10, Height: 7},
			expected: 1,
		},
		{
			name:     "touching edges",
			a:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			b:        Region{X: 10, Y: 0, Width: 10, Height: 10},
			expected: 0,
		},
		{
			name:     "half shifted",
			a:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			b:        Region{X: 5, Y: 0, Width: 10, Height: 10},
			expected: 50.0 / 150.0,
		},
		{
			name:     "contained",
			a:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			b:        Region{X: 0, Y: 0, Width: 5, Height: 5},
			expected: 0.25,
		},
		{
			name:     "both zero area",
			a:        Region{X: 1, Y: 1},
			b:        Region{X: 1, Y: 1},
			expected: 0,
		},
		{
			name:     "one zero area",
			a:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			b:        Region{X: 2, Y: 2, Width: 0, Height: 4},
			expected: 0,
		},
		{
			name:     "negative size is canonicalised",
			a:        Region{X: 10, Y: 10, Width: -10, Height: -10},
			b:        Region{X: 0, Y: 0, Width: 10, Height: 10},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverlapRatio(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("OverlapRatio(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
			if back := OverlapRatio(tt.b, tt.a); back != got {
				t.Errorf("not symmetric: %v vs %v", got, back)
			}
			if got < 0 || got > 1 {
				t.Errorf("out of range: %v", got)
			}
		})
	}
}

func TestFromCorners(t *testing.T) {
	r := FromCorners(30, 40, 10, 20)
	want := Region{X: 10, Y: 20, Width: 20, Height: 20}
	if r != want {
		t.Errorf("FromCorners = %v, want %v", r, want)
	}

	x1, y1, x2, y2 := r.Corners()
	if x1 != 10 || y1 != 20 || x2 != 30 || y2 != 40 {
		t.Errorf("Corners = %v %v %v %v", x1, y1, x2, y2)
	}
}

func TestRegionsKeepsOrder(t *testing.T) {
	dets := []Detection{
		{Region: Region{X: 5, Width: 1, Height: 1}, Confidence: 0.2},
		{Region: Region{X: 1, Width: 1, Height: 1}, Confidence: 0.9},
	}
	got := Regions(dets)
	if len(got) != 2 || got[0].X != 5 || got[1].X != 1 {
		t.Errorf("Regions = %v", got)
	}
	if Regions(nil) != nil {
		t.Error("expected nil set for no detections")
	}
}
