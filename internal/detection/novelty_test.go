package detection

import "testing"

var (
	boxA        = Region{X: 0, Y: 0, Width: 10, Height: 10}
	boxAShifted = Region{X: 1, Y: 0, Width: 10, Height: 10}
	boxB        = Region{X: 100, Y: 100, Width: 10, Height: 10}
)

func TestIsNovel(t *testing.T) {
	tests := []struct {
		name       string
		history    RegionSet
		candidates RegionSet
		threshold  float64
		expected   bool
	}{
		{"empty history and candidates", nil, nil, 0.5, false},
		{"empty candidates with history", RegionSet{boxA}, nil, 0.5, false},
		{"first sighting", nil, RegionSet{boxA}, 0.5, true},
		{"same region again", RegionSet{boxA}, RegionSet{boxA}, 0.5, false},
		{"slightly shifted", RegionSet{boxA}, RegionSet{boxAShifted}, 0.5, false},
		{"disjoint region", RegionSet{boxA}, RegionSet{boxB}, 0.5, true},
		{"one matched one new", RegionSet{boxA}, RegionSet{boxAShifted, boxB}, 0.5, true},
		{"all matched against larger history", RegionSet{boxA, boxB}, RegionSet{boxB}, 0.5, false},
		{"strict threshold makes shift novel", RegionSet{boxA}, RegionSet{boxAShifted}, 0.9, true},
		{"exact threshold is a match", RegionSet{boxA}, RegionSet{boxA}, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNovel(tt.history, tt.candidates, tt.threshold); got != tt.expected {
				t.Errorf("IsNovel(%v, %v, %v) = %v, want %v",
					tt.history, tt.candidates, tt.threshold, got, tt.expected)
			}
		})
	}
}

func TestNoveltyFilterDefaults(t *testing.T) {
	var f NoveltyFilter
	if f.threshold() != DefaultNoveltyThreshold {
		t.Fatalf("zero filter threshold = %v", f.threshold())
	}
	if f.IsNovel(RegionSet{boxA}, RegionSet{boxAShifted}) {
		t.Error("shifted region should match at default threshold")
	}

	strict := NoveltyFilter{Threshold: 0.95}
	if !strict.IsNovel(RegionSet{boxA}, RegionSet{boxAShifted}) {
		t.Error("shifted region should be novel at 0.95")
	}
}
