// Package scoring combines the per-signal risk scores into a trust score
// and verdict. Inputs arrive already clamped to [0,1] by their producers;
// weights are validated once at startup via config.Validate, never here.
//
// One aggregation mode exists: the three-way verdict (Pass / Flag / Manual).
// Brand mismatch participates as its own weighted risk component rather than
// overriding the visual channel, so each signal in the breakdown stays
// independently explainable.
package scoring

import (
	"math"

	"github.com/Mharish0341/Trustguard/internal/listing"
	"github.com/Mharish0341/Trustguard/pkg/config"
)

// Aggregator turns signal risks into a trust score and verdict.
type Aggregator struct {
	cfg config.ScoringConfig
}

// New creates an Aggregator with validated weights and thresholds.
func New(cfg config.ScoringConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the weighted trust fraction over (1 − risk) per signal,
// with brand mismatch as a binary risk (1.0 when flagged). The score is
// floor(trust × 100) in [0,100].
func (a *Aggregator) Aggregate(textRisk, visualRisk, rulesRisk float64, brandFlag bool) (int, listing.Verdict) {
	brandRisk := 0.0
	if brandFlag {
		brandRisk = 1.0
	}
	trust := a.cfg.TextWeight*(1-textRisk) +
		a.cfg.VisualWeight*(1-visualRisk) +
		a.cfg.RulesWeight*(1-rulesRisk) +
		a.cfg.BrandWeight*(1-brandRisk)

	// The epsilon keeps float noise in the weighted sum from flooring a
	// perfect 100 down to 99.
	score := int(math.Floor(trust*100 + 1e-9))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, a.verdict(score)
}

func (a *Aggregator) verdict(score int) listing.Verdict {
	switch {
	case score >= a.cfg.PassThreshold:
		return listing.VerdictPass
	case score >= a.cfg.FlagThreshold:
		return listing.VerdictFlag
	default:
		return listing.VerdictManual
	}
}
