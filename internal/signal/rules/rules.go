// Package rules scores rating and return-count statistics against fixed
// thresholds. It is pure arithmetic with no failure mode.
package rules

import "fmt"

// Threshold policy. Ratings are numeric (1.0–5.0); a listing is anomalous
// when too many ratings sit at the extremes or returns outpace what its
// ratings suggest.
const (
	lowRating        = 1.5
	highRating       = 4.5
	lowRatioCutoff   = 0.3
	highRatioCutoff  = 0.9
	suspectReturns   = 10
	excessiveReturns = 20

	baselineRisk = 0.1
	elevatedRisk = 0.7
	highRisk     = 0.9
)

// AnomalyScore returns a risk in [0,1] for the given rating sequence and
// return count. No ratings at all is near-baseline: absence of data is
// handled by the review signal, not here.
func AnomalyScore(ratings []float64, returns int) float64 {
	n := len(ratings)
	if n == 0 {
		return baselineRisk
	}
	var low, high int
	for _, r := range ratings {
		if r <= lowRating {
			low++
		}
		if r >= highRating {
			high++
		}
	}
	lowRatio := float64(low) / float64(n)
	highRatio := float64(high) / float64(n)

	switch {
	case lowRatio > lowRatioCutoff:
		// A third of buyers rating it 1.5 or below is direct evidence.
		return highRisk
	case highRatio > highRatioCutoff && returns > suspectReturns:
		// Near-unanimous five stars while returns pile up reads as bought
		// reviews on a product people send back.
		return highRisk
	case returns > excessiveReturns:
		return elevatedRisk
	default:
		return baselineRisk
	}
}

// Explain renders the one-line rationale recorded in the report.
func Explain(ratings []float64, returns int) string {
	return fmt.Sprintf("rule_risk=%.2f ratings=%d returns=%d",
		AnomalyScore(ratings, returns), len(ratings), returns)
}
