package classify

import (
	"math"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// categoryCaps bound each category's contribution. Categories not listed do not score.
var categoryCaps = map[Category]float64{
	CategoryCompany:   0.30,
	CategoryPosition:  0.25,
	CategoryStatus:    0.20,
	CategorySender:    0.15,
	CategoryKeyword:   0.15,
	CategoryStructure: 0.10,
}

// Score combines evidence into a confidence in [0,1]: per-category weights are
// summed and capped, then the categories are summed and clamped. Weights are
// non-negative, so more evidence never lowers the score.
func Score(evidence []tracker.Evidence) float64 {
	sums := make(map[Category]float64, len(categoryCaps))
	for _, ev := range evidence {
		if ev.Weight <= 0 {
			continue
		}
		sums[Category(ev.Category)] += ev.Weight
	}

	total := 0.0
	// Fixed iteration order keeps float summation deterministic.
	for _, cat := range []Category{
		CategoryCompany, CategoryPosition, CategoryStatus,
		CategorySender, CategoryKeyword, CategoryStructure,
	} {
		total += math.Min(sums[cat], categoryCaps[cat])
	}
	total = math.Max(0, math.Min(total, 1))
	return math.Round(total*1000) / 1000
}

// ScoreCandidate scores c's evidence.
func ScoreCandidate(c Candidate) float64 {
	return Score(c.Evidence)
}
