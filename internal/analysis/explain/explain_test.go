package explain

import (
	"strings"
	"testing"

	"nifty-advisor/internal/analysis/rules"
	"nifty-advisor/internal/analysis/safety"
	"nifty-advisor/internal/models"
)

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func bullishEval() models.EvaluationResult {
	return models.EvaluationResult{
		MarketBias:          models.BiasBullish,
		ConfidenceScore:     0.725,
		RiskLevel:           models.RiskLow,
		TradeRecommendation: models.TradeCall,
		SignalStrength:      0.62,
		RiskReasons:         []string{},
		RuleResults: []models.RuleResult{
			{Name: rules.NamePCR, SignalStrength: 0.8, Triggered: true},
			{Name: rules.NameOIBuildup, SignalStrength: 0.5, Triggered: true},
			{Name: rules.NameMaxOI, SignalStrength: 0.7, Triggered: true},
			{Name: rules.NameSupportResistance, SignalStrength: 0.1, Triggered: true},
		},
	}
}

func TestExplain_StrongCall(t *testing.T) {
	score := &models.ScoreResult{FinalScore: 0.62, Category: models.CategoryStrongBullish}
	safe := &models.SafetyResult{IsSafe: true, Warnings: []models.Warning{{Message: safety.Disclaimer, Severity: models.SeverityWarning}}}

	e := Explain(bullishEval(), score, safe)

	if !strings.HasPrefix(e.MarketBias, "The market shows strong upward momentum") {
		t.Errorf("market bias = %q", e.MarketBias)
	}
	if !strings.HasPrefix(e.SuggestedAction, "Consider buying call options") {
		t.Errorf("suggested action = %q", e.SuggestedAction)
	}
	if e.Why[0] != "The analysis shows 72% confidence, meaning multiple indicators agree on the direction." &&
		e.Why[0] != "The analysis shows 73% confidence, meaning multiple indicators agree on the direction." {
		t.Errorf("why[0] = %q", e.Why[0])
	}
	// confidence + PCR + OI + Max OI (S/R at 0.1 is skipped) + strength
	if len(e.Why) != 5 {
		t.Errorf("why = %d entries, want 5: %v", len(e.Why), e.Why)
	}
	if !contains(e.Why, "Put-Call Ratio is elevated") || !contains(e.Why, "acting as a support level") {
		t.Errorf("why = %v", e.Why)
	}
	if contains(e.Why, "Strong support level is nearby") {
		t.Errorf("weak support/resistance rule should be skipped")
	}
	if e.Why[len(e.Why)-1] != "The overall signal strength is strong, with clear directional bias." {
		t.Errorf("last why = %q", e.Why[len(e.Why)-1])
	}
	if !strings.HasPrefix(e.RiskLevel, "LOW RISK") {
		t.Errorf("risk level = %q", e.RiskLevel)
	}
	if len(e.WhatCanGoWrong) != 3 || !strings.HasPrefix(e.WhatCanGoWrong[2], "Call option risk") {
		t.Errorf("what can go wrong = %v", e.WhatCanGoWrong)
	}
}

func TestExplain_BlockedOverridesAction(t *testing.T) {
	safe := &models.SafetyResult{
		Blocked: true,
		Warnings: []models.Warning{
			{Message: safety.Disclaimer, Severity: models.SeverityWarning},
			{Message: safety.PrefixWeeklyExpiry + ": Options expiring within 7 days (21-Mar-2024).", Severity: models.SeverityBlocking},
			{Message: safety.PrefixVeryLowIV + ": Minimum IV is 8.0%", Severity: models.SeverityBlocking},
			{Message: safety.PrefixFarOTM + ": Some strikes", Severity: models.SeverityWarning},
		},
	}

	e := Explain(bullishEval(), nil, safe)

	if !strings.HasPrefix(e.SuggestedAction, "Trading is not recommended at this time.") {
		t.Errorf("suggested action = %q", e.SuggestedAction)
	}
	if !strings.HasPrefix(e.RiskLevel, "HIGH RISK: Trading is blocked") {
		t.Errorf("risk level = %q", e.RiskLevel)
	}
	if !contains(e.WhatCanGoWrong, "Weekly expiry risk") ||
		!contains(e.WhatCanGoWrong, "Low volatility risk") ||
		!contains(e.WhatCanGoWrong, "Far out-of-the-money risk") {
		t.Errorf("what can go wrong = %v", e.WhatCanGoWrong)
	}
	if e.MarketBias != "The market shows upward momentum. Indicators suggest prices may rise." {
		t.Errorf("nil score should fall back to bias: %q", e.MarketBias)
	}
}

func TestExplain_NoTradeWithRiskReasons(t *testing.T) {
	eval := models.EvaluationResult{
		MarketBias:          models.BiasNoTrade,
		RiskLevel:           models.RiskHigh,
		TradeRecommendation: models.TradeNoTrade,
		RiskReasons: []string{
			"PCR data missing - Incomplete analysis",
			"Extreme PCR (2.50) - Market may be overbought, high reversal risk",
		},
	}
	score := &models.ScoreResult{Category: models.CategoryNeutral}

	e := Explain(eval, score, nil)

	if !strings.Contains(e.SuggestedAction, "Sometimes the best trade is no trade.") {
		t.Errorf("suggested action = %q", e.SuggestedAction)
	}
	if e.Why[0] != "The analysis shows 0% confidence, indicating mixed or weak signals." || len(e.Why) != 1 {
		t.Errorf("why = %v", e.Why)
	}
	if !strings.HasPrefix(e.RiskLevel, "HIGH RISK: Multiple risk factors") {
		t.Errorf("risk level = %q", e.RiskLevel)
	}
	for _, want := range []string{"Low confidence signal", "High risk conditions", "Incomplete data", "Extreme market conditions"} {
		if !contains(e.WhatCanGoWrong, want) {
			t.Errorf("what can go wrong missing %q: %v", want, e.WhatCanGoWrong)
		}
	}
	if contains(e.WhatCanGoWrong, "Call option risk") || contains(e.WhatCanGoWrong, "Put option risk") {
		t.Errorf("no trade should not add a direction risk")
	}
}

func TestSuggestedAction_Put(t *testing.T) {
	tests := []struct {
		confidence float64
		risk       models.RiskLevel
		prefix     string
	}{
		{0.8, models.RiskLow, "Consider buying put options"},
		{0.8, models.RiskMedium, "You may consider buying put options"},
		{0.3, models.RiskMedium, "Put options are possible but not strongly recommended."},
	}
	for _, tt := range tests {
		eval := models.EvaluationResult{TradeRecommendation: models.TradePut, ConfidenceScore: tt.confidence, RiskLevel: tt.risk}
		if got := suggestedAction(eval, nil); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("suggestedAction(%v, %v) = %q, want prefix %q", tt.confidence, tt.risk, got, tt.prefix)
		}
	}
}

func TestRuleSentence_Bearish(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{rules.NamePCR, "Put-Call Ratio is low"},
		{rules.NameOIBuildup, "Open Interest is decreasing"},
		{rules.NameMaxOI, "acting as a resistance level"},
		{rules.NameSupportResistance, "Strong resistance level is nearby"},
		{"Unknown Rule", ""},
	}
	for _, tt := range tests {
		got := ruleSentence(models.RuleResult{Name: tt.name, SignalStrength: -0.5, Triggered: true})
		if tt.want == "" {
			if got != "" {
				t.Errorf("%s: got %q, want empty", tt.name, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRiskLevel_WithoutReasons(t *testing.T) {
	tests := []struct {
		level  models.RiskLevel
		prefix string
	}{
		{models.RiskHigh, "HIGH RISK: The analysis indicates"},
		{models.RiskMedium, "MODERATE RISK: Standard options"},
		{models.RiskLow, "LOW RISK"},
		{"", "Risk assessment is unavailable"},
	}
	for _, tt := range tests {
		if got := riskLevel(models.EvaluationResult{RiskLevel: tt.level}, nil); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("riskLevel(%q) = %q", tt.level, got)
		}
	}
}
