package staircase

// Rule decides whether the recorded observations settle on a threshold.
// It is consulted after each recorded positive, with the level it was recorded at.
// The reason is ReasonConverged or ReasonFallback.
type Rule interface {
	Threshold(history []Observation, level int) (int, Reason, bool)
}

// LowestLevel picks the lowest level with at least Min positives. Once the
// history holds FallbackAfter observations without such a level, it picks the
// level with the most positives, the lower level winning ties.
type LowestLevel struct {
	Min           int
	FallbackAfter int
}

func (r LowestLevel) Threshold(history []Observation, _ int) (int, Reason, bool) {
	counts := positivesByLevel(history)

	best, found := 0, false
	for level, n := range counts {
		if n >= r.Min && (!found || level < best) {
			best, found = level, true
		}
	}
	if found {
		return best, ReasonConverged, true
	}

	if r.FallbackAfter <= 0 || len(history) < r.FallbackAfter {
		return 0, ReasonNone, false
	}
	most := 0
	for level, n := range counts {
		if n > most || (n == most && n > 0 && level < best) {
			best, most = level, n
		}
	}
	if most == 0 {
		return 0, ReasonNone, false
	}
	return best, ReasonFallback, true
}

// SameLevel settles when the current level has collected Min positives.
type SameLevel struct {
	Min int
}

func (r SameLevel) Threshold(history []Observation, level int) (int, Reason, bool) {
	n := 0
	for _, o := range history {
		if o.Positive && o.Level == level {
			n++
		}
	}
	if n < r.Min {
		return 0, ReasonNone, false
	}
	return level, ReasonConverged, true
}

func positivesByLevel(history []Observation) map[int]int {
	counts := make(map[int]int)
	for _, o := range history {
		if o.Positive {
			counts[o.Level]++
		}
	}
	return counts
}
