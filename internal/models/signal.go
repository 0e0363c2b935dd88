package models

// OIBuildup classifies directional conviction from the sign of OI changes.
type OIBuildup string

const (
	BuildupLong      OIBuildup = "Long"
	BuildupShort     OIBuildup = "Short"
	BuildupUnwinding OIBuildup = "Unwinding"
	BuildupMixed     OIBuildup = "Mixed"
	BuildupUnknown   OIBuildup = "Unknown"
)

// FeatureSet holds the metrics derived from one snapshot.
//
// strike_wise_pcr is serialized as a list of {strike, pcr} objects sorted by
// ascending strike, not as a mapping keyed by strike. Strikes without a
// computable ratio are omitted.
type FeatureSet struct {
	ATMStrike       *float64    `json:"atm_strike" yaml:"atm_strike"`
	OverallPCR      *float64    `json:"overall_pcr" yaml:"overall_pcr"`
	StrikeWisePCR   []StrikePCR `json:"strike_wise_pcr" yaml:"strike_wise_pcr"`
	MaxCallOIStrike *float64    `json:"max_call_oi_strike" yaml:"max_call_oi_strike"`
	MaxPutOIStrike  *float64    `json:"max_put_oi_strike" yaml:"max_put_oi_strike"`
	Support         *float64    `json:"support" yaml:"support"`
	Resistance      *float64    `json:"resistance" yaml:"resistance"`
	OIBuildupType   OIBuildup   `json:"oi_buildup_type" yaml:"oi_buildup_type"`
	UnderlyingValue *float64    `json:"underlying_value,omitempty" yaml:"underlying_value,omitempty"`
}

// StrikePCR is the put-call ratio of a single strike.
type StrikePCR struct {
	Strike float64 `json:"strike" yaml:"strike"`
	PCR    float64 `json:"pcr" yaml:"pcr"`
}

// PCRAt returns the strike-wise PCR for strike, if one was computed.
func (f FeatureSet) PCRAt(strike float64) (float64, bool) {
	for _, s := range f.StrikeWisePCR {
		if s.Strike == strike {
			return s.PCR, true
		}
	}
	return 0, false
}

// RuleResult is the output of a single rule evaluation.
type RuleResult struct {
	Name           string  `json:"name" yaml:"name"`
	Description    string  `json:"description" yaml:"description"`
	SignalStrength float64 `json:"signal_strength" yaml:"signal_strength"`
	Triggered      bool    `json:"triggered" yaml:"triggered"`
	Explanation    string  `json:"explanation" yaml:"explanation"`
}

// Bias is the directional market bias.
type Bias string

const (
	BiasBullish  Bias = "Bullish"
	BiasBearish  Bias = "Bearish"
	BiasSideways Bias = "Sideways"
	BiasNoTrade  Bias = "No-Trade"
)

// RiskLevel grades how risky acting on a signal is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// TradeRecommendation is the instrument a beginner may consider buying.
type TradeRecommendation string

const (
	TradeCall    TradeRecommendation = "Call"
	TradePut     TradeRecommendation = "Put"
	TradeNoTrade TradeRecommendation = "No Trade"
)

// SignalResult is the raw aggregate of all rule outputs.
type SignalResult struct {
	OverallSignal  float64      `json:"overall_signal" yaml:"overall_signal"`
	Bias           Bias         `json:"bias" yaml:"bias"`
	RiskWarning    bool         `json:"risk_warning" yaml:"risk_warning"`
	RiskReasons    []string     `json:"risk_reasons" yaml:"risk_reasons"`
	RuleResults    []RuleResult `json:"rule_results" yaml:"rule_results"`
	Recommendation string       `json:"recommendation" yaml:"recommendation"`
}

// EvaluationResult is the structured verdict of the rule evaluator.
type EvaluationResult struct {
	MarketBias          Bias                `json:"market_bias" yaml:"market_bias"`
	ConfidenceScore     float64             `json:"confidence_score" yaml:"confidence_score"`
	RiskLevel           RiskLevel           `json:"risk_level" yaml:"risk_level"`
	TradeRecommendation TradeRecommendation `json:"trade_recommendation" yaml:"trade_recommendation"`
	SignalStrength      float64             `json:"signal_strength" yaml:"signal_strength"`
	RiskReasons         []string            `json:"risk_reasons" yaml:"risk_reasons"`
	RuleResults         []RuleResult        `json:"rule_results" yaml:"rule_results"`
}

// ScoreCategory is the label assigned to a weighted score.
type ScoreCategory string

const (
	CategoryStrongBullish ScoreCategory = "Strong Bullish"
	CategoryMildBullish   ScoreCategory = "Mild Bullish"
	CategoryNeutral       ScoreCategory = "Neutral"
	CategoryMildBearish   ScoreCategory = "Mild Bearish"
	CategoryStrongBearish ScoreCategory = "Strong Bearish"
)

// ScoreResult is the output of the weighted scorer.
type ScoreResult struct {
	FinalScore            float64            `json:"final_score" yaml:"final_score"`
	Category              ScoreCategory      `json:"category" yaml:"category"`
	WeightedContributions map[string]float64 `json:"weighted_contributions" yaml:"weighted_contributions"`
	WeightsUsed           map[string]float64 `json:"weights_used" yaml:"weights_used"`
}

// Severity tags a safety warning.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Warning is a safety or risk message with its severity fixed at creation.
type Warning struct {
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// IsBlocking reports whether the warning blocks trading.
func (w Warning) IsBlocking() bool {
	return w.Severity == SeverityBlocking
}

// SafetyResult is the verdict of the safety gate.
type SafetyResult struct {
	IsSafe      bool      `json:"is_safe" yaml:"is_safe"`
	Warnings    []Warning `json:"warnings" yaml:"warnings"`
	Blocked     bool      `json:"blocked" yaml:"blocked"`
	BlockReason *string   `json:"block_reason" yaml:"block_reason"`
}

// Explanation is the beginner-oriented prose rendering of a verdict.
type Explanation struct {
	MarketBias      string   `json:"market_bias" yaml:"market_bias"`
	SuggestedAction string   `json:"suggested_action" yaml:"suggested_action"`
	Why             []string `json:"why" yaml:"why"`
	RiskLevel       string   `json:"risk_level" yaml:"risk_level"`
	WhatCanGoWrong  []string `json:"what_can_go_wrong" yaml:"what_can_go_wrong"`
}
