// Package scoring combines rule outputs into a weighted, categorized score.
//
// The scorer's weights are configurable and independent of the fixed
// aggregation weights inside rules.Evaluator. With non-default weights the
// evaluator's bias and the scorer's category can disagree for the same rules.
package scoring

import (
	"math"

	"nifty-advisor/internal/analysis/rules"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// Category thresholds.
const (
	StrongBullishThreshold = 0.6
	MildBullishThreshold   = 0.2
	NeutralThreshold       = -0.2
	MildBearishThreshold   = -0.6
)

var defaultWeights = map[string]float64{
	rules.NamePCR:               0.4,
	rules.NameOIBuildup:         0.2,
	rules.NameMaxOI:             0.2,
	rules.NameSupportResistance: 0.2,
}

// DefaultWeights returns a copy of the default rule weights.
func DefaultWeights() map[string]float64 {
	return copyWeights(defaultWeights)
}

// Thresholds returns a copy of the category thresholds.
func Thresholds() map[string]float64 {
	return map[string]float64{
		"strong_bullish": StrongBullishThreshold,
		"mild_bullish":   MildBullishThreshold,
		"neutral":        NeutralThreshold,
		"mild_bearish":   MildBearishThreshold,
	}
}

// Scorer weighs rule results into a final score in [-1, 1].
type Scorer struct {
	weights map[string]float64
}

// NewScorer creates a scorer with the default weights.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

// NewScorerWithWeights creates a scorer with custom weights. Rules missing
// from weights fall back to their default weight, or 0 when unknown.
// Non-finite weights are dropped.
func NewScorerWithWeights(weights map[string]float64) *Scorer {
	return &Scorer{weights: copyWeights(weights)}
}

// Weights returns a copy of the configured weights.
func (s *Scorer) Weights() map[string]float64 {
	return copyWeights(s.weights)
}

// Score calculates the weighted score of results.
func (s *Scorer) Score(results []models.RuleResult) (*models.ScoreResult, error) {
	if len(results) == 0 {
		return nil, apperrors.ErrEmptyRuleResults
	}

	// Distinct rule names in first-seen order keep float sums reproducible.
	names := make([]string, 0, len(results))
	raw := make(map[string]float64, len(results))
	for _, r := range results {
		if _, ok := raw[r.Name]; ok {
			continue
		}
		w, ok := s.weights[r.Name]
		if !ok {
			w = defaultWeights[r.Name]
		}
		raw[r.Name] = w
		names = append(names, r.Name)
	}

	normalized := normalize(names, raw)

	contributions := make(map[string]float64, len(names))
	var final float64
	for _, r := range results {
		c := normalized[r.Name] * r.SignalStrength
		contributions[r.Name] = c
		final += c
	}
	if math.IsNaN(final) {
		final = 0
	}
	final = rules.Clamp(final, -1, 1)

	return &models.ScoreResult{
		FinalScore:            final,
		Category:              Category(final),
		WeightedContributions: contributions,
		WeightsUsed:           normalized,
	}, nil
}

// normalize scales weights to sum to 1, splitting equally when they sum to 0.
// Weights are divided by the largest one before summing so that huge but
// finite values cannot overflow the total.
func normalize(names []string, weights map[string]float64) map[string]float64 {
	var largest float64
	for _, n := range names {
		largest = math.Max(largest, math.Abs(weights[n]))
	}

	var total float64
	if largest > 0 {
		for _, n := range names {
			total += weights[n] / largest
		}
	}

	out := make(map[string]float64, len(names))
	for _, n := range names {
		if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			out[n] = 1.0 / float64(len(names))
			continue
		}
		out[n] = weights[n] / largest / total
	}
	return out
}

// Category maps a score onto its label. NaN maps to neutral.
func Category(score float64) models.ScoreCategory {
	switch {
	case math.IsNaN(score):
		return models.CategoryNeutral
	case score >= StrongBullishThreshold:
		return models.CategoryStrongBullish
	case score >= MildBullishThreshold:
		return models.CategoryMildBullish
	case score > NeutralThreshold:
		return models.CategoryNeutral
	case score > MildBearishThreshold:
		return models.CategoryMildBearish
	default:
		return models.CategoryStrongBearish
	}
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}
