package detection

// DefaultNoveltyThreshold is the overlap below which a candidate counts as
// unmatched by a previously reported region.
const DefaultNoveltyThreshold = 0.5

// IsNovel reports whether candidates should be treated as a new observation
// relative to history. An empty candidate set is never novel. Against an
// empty history any non-empty set is novel. Otherwise the set is novel when at
// least one candidate overlaps every history region by less than threshold.
func IsNovel(history, candidates RegionSet, threshold float64) bool {
	if len(candidates) == 0 {
		return false
	}
	if len(history) == 0 {
		return true
	}
	for _, c := range candidates {
		if unmatched(c, history, threshold) {
			return true
		}
	}
	return false
}

func unmatched(c Region, history RegionSet, threshold float64) bool {
	for _, h := range history {
		if OverlapRatio(c, h) >= threshold {
			return false
		}
	}
	return true
}

// NoveltyFilter carries a configured threshold. The zero value uses
// DefaultNoveltyThreshold.
type NoveltyFilter struct {
	Threshold float64
}

func (f NoveltyFilter) threshold() float64 {
	if f.Threshold <= 0 {
		return DefaultNoveltyThreshold
	}
	return f.Threshold
}

func (f NoveltyFilter) IsNovel(history, candidates RegionSet) bool {
	return IsNovel(history, candidates, f.threshold())
}
