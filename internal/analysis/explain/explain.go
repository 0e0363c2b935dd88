// Package explain renders an evaluation as plain-language guidance for beginners.
package explain

import (
	"fmt"
	"math"
	"strings"

	"nifty-advisor/internal/analysis/rules"
	"nifty-advisor/internal/analysis/safety"
	"nifty-advisor/internal/models"
)

// Explain renders eval. score and safe are optional; a nil score falls back
// to the evaluator's bias and a nil safety result is treated as unblocked.
func Explain(eval models.EvaluationResult, score *models.ScoreResult, safe *models.SafetyResult) models.Explanation {
	return models.Explanation{
		MarketBias:      marketBias(eval, score),
		SuggestedAction: suggestedAction(eval, safe),
		Why:             why(eval),
		RiskLevel:       riskLevel(eval, safe),
		WhatCanGoWrong:  whatCanGoWrong(eval, safe),
	}
}

func marketBias(eval models.EvaluationResult, score *models.ScoreResult) string {
	if score != nil {
		switch score.Category {
		case models.CategoryStrongBullish:
			return "The market shows strong upward momentum. Multiple indicators suggest prices may rise."
		case models.CategoryMildBullish:
			return "The market shows moderate upward momentum. There's a slight preference for price increases."
		case models.CategoryStrongBearish:
			return "The market shows strong downward momentum. Multiple indicators suggest prices may fall."
		case models.CategoryMildBearish:
			return "The market shows moderate downward momentum. There's a slight preference for price decreases."
		case models.CategoryNeutral:
			return "The market shows mixed signals. There's no clear directional bias at the moment."
		}
	}

	switch eval.MarketBias {
	case models.BiasBullish:
		return "The market shows upward momentum. Indicators suggest prices may rise."
	case models.BiasBearish:
		return "The market shows downward momentum. Indicators suggest prices may fall."
	case models.BiasSideways:
		return "The market shows mixed signals. Prices may move within a range."
	default:
		return "The market signals are unclear. There's no strong directional bias."
	}
}

func suggestedAction(eval models.EvaluationResult, safe *models.SafetyResult) string {
	if safe != nil && safe.Blocked {
		return "Trading is not recommended at this time. Safety checks have identified " +
			"conditions that are not suitable for beginners. Please wait for better market conditions."
	}

	var kind string
	switch eval.TradeRecommendation {
	case models.TradeCall:
		kind = "call"
	case models.TradePut:
		kind = "put"
	default:
		return "No action is recommended at this time. " +
			"The market conditions are not clear enough to make a confident trading decision. " +
			"Sometimes the best trade is no trade."
	}

	switch {
	case eval.ConfidenceScore >= 0.7 && eval.RiskLevel == models.RiskLow:
		return fmt.Sprintf("Consider buying %s options if you understand the risks. "+
			"The signals are relatively strong, but remember that options can expire worthless.", kind)
	case eval.ConfidenceScore >= 0.5:
		return fmt.Sprintf("You may consider buying %s options, but use caution. "+
			"The signals are moderate, so consider smaller position sizes.", kind)
	default:
		return fmt.Sprintf("%s options are possible but not strongly recommended. "+
			"The signals are weak, and the risk may outweigh potential rewards.", strings.ToUpper(kind[:1])+kind[1:])
	}
}

func why(eval models.EvaluationResult) []string {
	c := eval.ConfidenceScore
	pct := c * 100

	var reasons []string
	switch {
	case c >= 0.7:
		reasons = append(reasons, fmt.Sprintf("The analysis shows %.0f%% confidence, meaning multiple indicators agree on the direction.", pct))
	case c >= 0.5:
		reasons = append(reasons, fmt.Sprintf("The analysis shows %.0f%% confidence, with some indicators supporting this view.", pct))
	default:
		reasons = append(reasons, fmt.Sprintf("The analysis shows %.0f%% confidence, indicating mixed or weak signals.", pct))
	}

	for _, r := range eval.RuleResults {
		if !r.Triggered || math.Abs(r.SignalStrength) <= rules.WeakSignal {
			continue
		}
		if s := ruleSentence(r); s != "" {
			reasons = append(reasons, s)
		}
	}

	switch mag := math.Abs(eval.SignalStrength); {
	case mag >= rules.StrongSignal:
		reasons = append(reasons, "The overall signal strength is strong, with clear directional bias.")
	case mag >= rules.ModerateSignal:
		reasons = append(reasons, "The overall signal strength is moderate, showing some directional preference.")
	}
	return reasons
}

// ruleSentence translates a rule result by family and direction.
func ruleSentence(r models.RuleResult) string {
	bullish := r.SignalStrength > 0

	switch r.Name {
	case rules.NamePCR:
		if bullish {
			return "Put-Call Ratio is elevated, suggesting traders are buying more put protection. " +
				"This often indicates bullish sentiment."
		}
		return "Put-Call Ratio is low, suggesting traders are buying more call options. " +
			"This often indicates bearish sentiment."
	case rules.NameOIBuildup:
		if bullish {
			return "Open Interest is increasing for both calls and puts, suggesting strong " +
				"directional positions are being built."
		}
		return "Open Interest is decreasing, suggesting positions are being closed. " +
			"This may indicate uncertainty."
	case rules.NameMaxOI:
		if bullish {
			return "Maximum Put Open Interest is below current price, acting as a support level. " +
				"This suggests the market may find buying interest at lower levels."
		}
		return "Maximum Call Open Interest is above current price, acting as a resistance level. " +
			"This suggests the market may face selling pressure at higher levels."
	case rules.NameSupportResistance:
		if bullish {
			return "Strong support level is nearby, which may help prevent further price declines."
		}
		return "Strong resistance level is nearby, which may limit further price gains."
	}
	return ""
}

func riskLevel(eval models.EvaluationResult, safe *models.SafetyResult) string {
	if safe != nil && safe.Blocked {
		return "HIGH RISK: Trading is blocked due to safety concerns. " +
			"Market conditions are not suitable for beginner traders at this time."
	}

	if len(eval.RiskReasons) > 0 {
		switch eval.RiskLevel {
		case models.RiskHigh:
			return "HIGH RISK: Multiple risk factors are present. " +
				"Consider avoiding trades or using very small position sizes with strict stop-losses."
		case models.RiskMedium:
			return "MODERATE RISK: Some risk factors are present. " +
				"Use caution, smaller position sizes, and always set stop-losses."
		}
	} else {
		switch eval.RiskLevel {
		case models.RiskHigh:
			return "HIGH RISK: The analysis indicates elevated risk levels. " +
				"Proceed with extreme caution and consider waiting for better conditions."
		case models.RiskMedium:
			return "MODERATE RISK: Standard options trading risks apply. " +
				"Use proper position sizing and risk management."
		case models.RiskLow:
			return "LOW RISK: Relative to options trading, risk levels appear manageable. " +
				"However, remember that all options trading carries risk of total loss."
		}
	}
	return "Risk assessment is unavailable. Always use caution when trading options."
}

func whatCanGoWrong(eval models.EvaluationResult, safe *models.SafetyResult) []string {
	risks := []string{
		"Options can expire worthless: If the market doesn't move in your favor before expiry, " +
			"you may lose your entire investment.",
		"Time decay: Even if the market moves in your direction, time decay can erode option value. " +
			"Options lose value as they approach expiration.",
	}

	if eval.ConfidenceScore < 0.5 {
		risks = append(risks, "Low confidence signal: The analysis shows weak signals, meaning the market direction "+
			"is uncertain. The trade may not work out as expected.")
	}

	if eval.RiskLevel == models.RiskHigh {
		risks = append(risks, "High risk conditions: Multiple risk factors are present, increasing the chance of losses. "+
			"Consider avoiding trades or using very small positions.")
	}

	for _, reason := range eval.RiskReasons {
		lower := strings.ToLower(reason)
		switch {
		case strings.Contains(lower, "extreme"):
			risks = append(risks, "Extreme market conditions detected: The market may be overextended and could reverse "+
				"unexpectedly, causing losses.")
		case strings.Contains(lower, "missing"):
			risks = append(risks, "Incomplete data: Some analysis data is missing, which means the signal may be less reliable.")
		}
	}

	if safe != nil {
		farOTM := false
		for _, w := range safe.Warnings {
			if strings.HasPrefix(w.Message, safety.PrefixFarOTM) {
				farOTM = true
			}
			if !w.IsBlocking() {
				continue
			}
			switch {
			case strings.HasPrefix(w.Message, safety.PrefixWeeklyExpiry):
				risks = append(risks, "Weekly expiry risk: Options expiring soon have very high time decay. "+
					"You may lose money even if the market moves in your favor.")
			case strings.HasPrefix(w.Message, safety.PrefixVeryLowIV):
				risks = append(risks, "Low volatility risk: When volatility is low, option premiums are smaller. "+
					"This means you need larger price moves to profit, and losses can be significant.")
			}
		}
		if farOTM {
			risks = append(risks, "Far out-of-the-money risk: Options far from current price have lower probability "+
				"of becoming profitable. Most such options expire worthless.")
		}
	}

	switch eval.TradeRecommendation {
	case models.TradeCall:
		risks = append(risks, "Call option risk: If the market doesn't rise enough, or falls, your call options will lose value. "+
			"You need the market to move up significantly to profit.")
	case models.TradePut:
		risks = append(risks, "Put option risk: If the market doesn't fall enough, or rises, your put options will lose value. "+
			"You need the market to move down significantly to profit.")
	}
	return risks
}
