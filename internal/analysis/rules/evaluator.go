package rules

import (
	"fmt"
	"math"
	"strings"

	"nifty-advisor/internal/models"
)

// Signal magnitude bands.
const (
	WeakSignal     = 0.1
	ModerateSignal = 0.3
	StrongSignal   = 0.6
)

const riskSuffix = " WARNING: High-risk conditions detected. Reduce position size and use strict stop-loss."

// AggregationWeights are the fixed per-position weights the evaluator applies
// to rule strengths. They are independent of the scorer's configurable weights.
var AggregationWeights = []float64{0.4, 0.2, 0.2, 0.2}

// Evaluator runs a fixed, ordered set of rules and aggregates their output.
type Evaluator struct {
	rules   []Rule
	weights []float64
}

// NewEvaluator creates an evaluator over the default rules.
func NewEvaluator() *Evaluator {
	return NewEvaluatorWithRules(DefaultRules()...)
}

// NewEvaluatorWithRules creates an evaluator over rs in order. Rules beyond
// the aggregation weight table contribute nothing to the overall signal.
func NewEvaluatorWithRules(rs ...Rule) *Evaluator {
	w := make([]float64, len(AggregationWeights))
	copy(w, AggregationWeights)
	return &Evaluator{rules: rs, weights: w}
}

// Rules returns the evaluator's rules.
func (e *Evaluator) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// EvaluateRules runs every rule and builds the raw signal with its prose recommendation.
func (e *Evaluator) EvaluateRules(fs models.FeatureSet) models.SignalResult {
	results := make([]models.RuleResult, 0, len(e.rules))
	var overall float64
	for i, r := range e.rules {
		res := r.Evaluate(fs)
		results = append(results, res)
		if i < len(e.weights) {
			overall += res.SignalStrength * e.weights[i]
		}
	}
	overall = Clamp(overall, -1, 1)

	bias, recommendation := classify(overall)
	hasRisk, reasons := RiskWarnings(fs)
	if hasRisk {
		recommendation += riskSuffix
	}

	return models.SignalResult{
		OverallSignal:  overall,
		Bias:           bias,
		RiskWarning:    hasRisk,
		RiskReasons:    reasons,
		RuleResults:    results,
		Recommendation: recommendation,
	}
}

// Evaluate produces the structured verdict: bias, confidence, risk level and trade.
func (e *Evaluator) Evaluate(fs models.FeatureSet) models.EvaluationResult {
	sig := e.EvaluateRules(fs)
	confidence := Confidence(sig.OverallSignal, sig.RuleResults)

	return models.EvaluationResult{
		MarketBias:          sig.Bias,
		ConfidenceScore:     confidence,
		RiskLevel:           riskLevel(sig.RiskWarning, sig.RiskReasons, sig.OverallSignal, confidence),
		TradeRecommendation: tradeRecommendation(sig.Bias, sig.OverallSignal, confidence),
		SignalStrength:      sig.OverallSignal,
		RiskReasons:         sig.RiskReasons,
		RuleResults:         sig.RuleResults,
	}
}

func classify(signal float64) (models.Bias, string) {
	mag := math.Abs(signal)
	switch {
	case mag < WeakSignal:
		return models.BiasNoTrade, "Market conditions unclear. Wait for clearer signals before trading."
	case mag < ModerateSignal:
		return models.BiasSideways, "Weak directional signal. Consider staying out or using range-bound strategies."
	case signal > 0:
		if mag >= StrongSignal {
			return models.BiasBullish, "Strong bullish signal. Consider buying call options with proper risk management."
		}
		return models.BiasBullish, "Moderate bullish signal. Consider buying call options with caution."
	default:
		if mag >= StrongSignal {
			return models.BiasBearish, "Strong bearish signal. Consider buying put options with proper risk management."
		}
		return models.BiasBearish, "Moderate bearish signal. Consider buying put options with caution."
	}
}

// RiskWarnings lists risk reasons for fs. The flag is set only by extreme or
// missing PCR; the other reasons are advisory.
func RiskWarnings(fs models.FeatureSet) (bool, []string) {
	reasons := make([]string, 0, 3)
	hasRisk := false

	if fs.OverallPCR != nil {
		pcr := *fs.OverallPCR
		switch {
		case pcr >= pcrExtremeHigh:
			hasRisk = true
			reasons = append(reasons, fmt.Sprintf("Extreme PCR (%.2f) - Market may be overbought, high reversal risk", pcr))
		case pcr <= pcrExtremeLow:
			hasRisk = true
			reasons = append(reasons, fmt.Sprintf("Extreme PCR (%.2f) - Market may be oversold, high reversal risk", pcr))
		}
	} else {
		hasRisk = true
		reasons = append(reasons, "PCR data missing - Incomplete analysis")
	}

	if fs.UnderlyingValue == nil {
		reasons = append(reasons, "Underlying price missing - Position sizing difficult")
	}

	if fs.OIBuildupType == models.BuildupUnwinding || fs.OIBuildupType == models.BuildupMixed {
		reasons = append(reasons, fmt.Sprintf("OI pattern (%s) - Unclear direction, higher risk", fs.OIBuildupType))
	}

	return hasRisk, reasons
}

// Confidence blends signal magnitude (50%), directional agreement of the
// triggered rules (30%) and their mean magnitude (20%), clamped to [0, 1].
func Confidence(signal float64, results []models.RuleResult) float64 {
	var triggered []models.RuleResult
	for _, r := range results {
		if r.Triggered {
			triggered = append(triggered, r)
		}
	}
	if len(triggered) == 0 {
		return 0
	}

	var agreeing int
	var strength float64
	for _, r := range triggered {
		strength += math.Abs(r.SignalStrength)
		switch {
		case signal > 0 && r.SignalStrength > 0:
			agreeing++
		case signal < 0 && r.SignalStrength < 0:
			agreeing++
		case signal == 0 && math.Abs(r.SignalStrength) < WeakSignal:
			agreeing++
		}
	}

	n := float64(len(triggered))
	confidence := math.Abs(signal)*0.5 + float64(agreeing)/n*0.3 + strength/n*0.2
	return Clamp(confidence, 0, 1)
}

func riskLevel(hasRisk bool, reasons []string, signal, confidence float64) models.RiskLevel {
	if hasRisk {
		critical := 0
		for _, r := range reasons {
			lower := strings.ToLower(r)
			if strings.Contains(lower, "extreme") || strings.Contains(lower, "missing") {
				critical++
			}
		}
		if critical >= 1 || len(reasons) >= 2 {
			return models.RiskHigh
		}
		return models.RiskMedium
	}

	mag := math.Abs(signal)
	switch {
	case confidence < 0.3:
		return models.RiskMedium
	case mag < ModerateSignal:
		return models.RiskMedium
	case mag >= StrongSignal && confidence >= 0.6:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

func tradeRecommendation(bias models.Bias, signal, confidence float64) models.TradeRecommendation {
	if bias == models.BiasNoTrade || bias == models.BiasSideways {
		return models.TradeNoTrade
	}
	if math.Abs(signal) < WeakSignal || confidence < 0.2 {
		return models.TradeNoTrade
	}
	switch bias {
	case models.BiasBullish:
		return models.TradeCall
	case models.BiasBearish:
		return models.TradePut
	default:
		return models.TradeNoTrade
	}
}
