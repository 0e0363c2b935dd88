package models

// ReasonItem is one entry of the "why" list of a report.
type ReasonItem struct {
	Reason string `json:"reason" yaml:"reason"`
}

// RiskItem is one entry of the "what can go wrong" list of a report.
type RiskItem struct {
	Risk string `json:"risk" yaml:"risk"`
}

// ReportExplanation is the wire form of an Explanation.
type ReportExplanation struct {
	MarketBias           string       `json:"market_bias" yaml:"market_bias"`
	SuggestedAction      string       `json:"suggested_action" yaml:"suggested_action"`
	Why                  []ReasonItem `json:"why" yaml:"why"`
	RiskLevelDescription string       `json:"risk_level_description" yaml:"risk_level_description"`
	WhatCanGoWrong       []RiskItem   `json:"what_can_go_wrong" yaml:"what_can_go_wrong"`
}

// NewReportExplanation converts an Explanation to its wire form.
func NewReportExplanation(e Explanation) ReportExplanation {
	why := make([]ReasonItem, 0, len(e.Why))
	for _, r := range e.Why {
		why = append(why, ReasonItem{Reason: r})
	}
	risks := make([]RiskItem, 0, len(e.WhatCanGoWrong))
	for _, r := range e.WhatCanGoWrong {
		risks = append(risks, RiskItem{Risk: r})
	}
	return ReportExplanation{
		MarketBias:           e.MarketBias,
		SuggestedAction:      e.SuggestedAction,
		Why:                  why,
		RiskLevelDescription: e.RiskLevel,
		WhatCanGoWrong:       risks,
	}
}

// Report is the complete output of one analysis run.
type Report struct {
	Bias            Bias                `json:"bias" yaml:"bias"`
	Score           float64             `json:"score" yaml:"score"`
	ScoreCategory   ScoreCategory       `json:"score_category" yaml:"score_category"`
	Recommendation  TradeRecommendation `json:"recommendation" yaml:"recommendation"`
	ConfidenceScore float64             `json:"confidence_score" yaml:"confidence_score"`
	RiskLevel       RiskLevel           `json:"risk_level" yaml:"risk_level"`
	Explanation     ReportExplanation   `json:"explanation" yaml:"explanation"`
	Warnings        []Warning           `json:"warnings" yaml:"warnings"`

	// Intermediate results for detailed rendering; not part of the wire form.
	Features   FeatureSet       `json:"-" yaml:"-"`
	Evaluation EvaluationResult `json:"-" yaml:"-"`
	Scoring    ScoreResult      `json:"-" yaml:"-"`
	Safety     SafetyResult     `json:"-" yaml:"-"`
	Rows       int              `json:"-" yaml:"-"`
}

// Blocked reports whether the safety gate blocked trading.
func (r *Report) Blocked() bool {
	return r.Safety.Blocked
}

// Underlying returns the underlying value, or 0 when unknown.
func (r *Report) Underlying() float64 {
	return ValueOr(r.Features.UnderlyingValue, 0)
}
