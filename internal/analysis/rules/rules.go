// Package rules evaluates beginner-oriented option-buying rules over a feature set.
package rules

import (
	"fmt"
	"math"
	"strings"

	"nifty-advisor/internal/models"
)

// Rule names, shared with the scorer's weight table.
const (
	NamePCR               = "PCR Rule"
	NameOIBuildup         = "OI Build-up Rule"
	NameMaxOI             = "Max OI Rule"
	NameSupportResistance = "Support/Resistance Rule"
)

// PCR bands.
const (
	pcrExtremeHigh = 2.0
	pcrVeryBullish = 1.5
	pcrBullish     = 1.2
	pcrNeutralHigh = 1.0
	pcrNeutralLow  = 0.8
	pcrBearish     = 0.6
	pcrVeryBearish = 0.4
	pcrExtremeLow  = 0.3
)

// Distance bands, in percent of the underlying.
const (
	maxOIFarPct = 2.0
	srClosePct  = 1.0
	srNearPct   = 2.0
)

// Rule is a single strategy evaluated against a feature set.
type Rule interface {
	Name() string
	Evaluate(fs models.FeatureSet) models.RuleResult
}

// DefaultRules returns the four rules in aggregation order.
func DefaultRules() []Rule {
	return []Rule{
		PCRRule{},
		OIBuildupRule{},
		MaxOIRule{},
		SupportResistanceRule{},
	}
}

// PCRRule maps the overall put-call ratio onto a sentiment band.
type PCRRule struct{}

func (PCRRule) Name() string { return NamePCR }

func (r PCRRule) Evaluate(fs models.FeatureSet) models.RuleResult {
	if fs.OverallPCR == nil {
		return models.RuleResult{
			Name:        r.Name(),
			Description: "Put-Call Ratio indicates market sentiment",
			Explanation: "PCR data not available",
		}
	}

	pcr := *fs.OverallPCR
	var signal float64
	var explanation string

	switch {
	case pcr >= pcrExtremeHigh:
		signal = 0.9
		explanation = fmt.Sprintf("Extremely high PCR (%.2f) - Very bullish but high risk", pcr)
	case pcr >= pcrVeryBullish:
		signal = 0.8
		explanation = fmt.Sprintf("Very high PCR (%.2f) - Strong bullish sentiment", pcr)
	case pcr >= pcrBullish:
		signal = 0.6
		explanation = fmt.Sprintf("High PCR (%.2f) - Bullish sentiment", pcr)
	case pcr >= pcrNeutralHigh:
		signal = 0.3
		explanation = fmt.Sprintf("PCR above 1.0 (%.2f) - Slightly bullish", pcr)
	case pcr >= pcrNeutralLow:
		signal = 0.0
		explanation = fmt.Sprintf("Neutral PCR (%.2f) - Balanced market", pcr)
	case pcr >= pcrBearish:
		signal = -0.3
		explanation = fmt.Sprintf("PCR below 1.0 (%.2f) - Slightly bearish", pcr)
	case pcr >= pcrVeryBearish:
		signal = -0.6
		explanation = fmt.Sprintf("Low PCR (%.2f) - Bearish sentiment", pcr)
	case pcr <= pcrExtremeLow:
		signal = -0.9
		explanation = fmt.Sprintf("Extremely low PCR (%.2f) - Very bearish but high risk", pcr)
	default:
		signal = -0.8
		explanation = fmt.Sprintf("Very low PCR (%.2f) - Strong bearish sentiment", pcr)
	}

	return models.RuleResult{
		Name:           r.Name(),
		Description:    "Put-Call Ratio indicates market sentiment (PCR > 1.0 = bullish, < 1.0 = bearish)",
		SignalStrength: signal,
		Triggered:      true,
		Explanation:    explanation,
	}
}

// OIBuildupRule reads position strength from the OI build-up classification.
type OIBuildupRule struct{}

func (OIBuildupRule) Name() string { return NameOIBuildup }

func (r OIBuildupRule) Evaluate(fs models.FeatureSet) models.RuleResult {
	res := models.RuleResult{Name: r.Name(), Triggered: true}

	switch fs.OIBuildupType {
	case models.BuildupLong:
		res.Description = "Both Call and Put OI increasing - Strong directional move expected"
		res.SignalStrength = 0.5
		res.Explanation = "Long build-up: Both call and put OI increasing, indicating strong positions"
	case models.BuildupShort:
		res.Description = "Both Call and Put OI decreasing - Position covering, uncertainty"
		res.SignalStrength = -0.2
		res.Explanation = "Short build-up: Both call and put OI decreasing, positions being covered"
	case models.BuildupUnwinding:
		res.Description = "Mixed OI changes - Sideways movement likely"
		res.Explanation = "Unwinding: Mixed OI changes suggest sideways movement"
	case models.BuildupMixed:
		res.Description = "Inconsistent OI pattern - Unclear direction"
		res.Explanation = "Mixed pattern: Inconsistent OI changes, unclear direction"
	default:
		res.Description = "Open Interest build-up indicates position strength"
		res.Explanation = "OI build-up data not available"
		res.Triggered = false
	}
	return res
}

// MaxOIRule scores where the max-OI strikes sit relative to the underlying.
type MaxOIRule struct{}

func (MaxOIRule) Name() string { return NameMaxOI }

func (r MaxOIRule) Evaluate(fs models.FeatureSet) models.RuleResult {
	if !hasPrice(fs.UnderlyingValue) || fs.ATMStrike == nil {
		return models.RuleResult{
			Name:        r.Name(),
			Description: "Maximum OI strikes indicate support/resistance levels",
			Explanation: "Underlying or ATM data not available",
		}
	}

	u := *fs.UnderlyingValue
	var signal float64
	var parts []string

	if fs.MaxPutOIStrike != nil {
		strike := *fs.MaxPutOIStrike
		switch {
		case strike < u:
			dist := (u - strike) / u * 100
			if dist > maxOIFarPct {
				signal += 0.4
				parts = append(parts, fmt.Sprintf("Max Put OI at %.0f (support %.1f%% below)", strike, dist))
			} else {
				signal += 0.2
				parts = append(parts, fmt.Sprintf("Max Put OI at %.0f (near support)", strike))
			}
		case strike > u:
			dist := (strike - u) / u * 100
			if dist > maxOIFarPct {
				signal -= 0.3
				parts = append(parts, fmt.Sprintf("Max Put OI at %.0f (above price, bearish)", strike))
			} else {
				signal -= 0.1
				parts = append(parts, fmt.Sprintf("Max Put OI at %.0f (slightly above)", strike))
			}
		default:
			parts = append(parts, fmt.Sprintf("Max Put OI at %.0f (at current price)", strike))
		}
	}

	if fs.MaxCallOIStrike != nil {
		strike := *fs.MaxCallOIStrike
		switch {
		case strike > u:
			dist := (strike - u) / u * 100
			if dist > maxOIFarPct {
				signal -= 0.4
				parts = append(parts, fmt.Sprintf("Max Call OI at %.0f (resistance %.1f%% above)", strike, dist))
			} else {
				signal -= 0.2
				parts = append(parts, fmt.Sprintf("Max Call OI at %.0f (near resistance)", strike))
			}
		case strike < u:
			dist := (u - strike) / u * 100
			if dist > maxOIFarPct {
				signal += 0.3
				parts = append(parts, fmt.Sprintf("Max Call OI at %.0f (below price, bullish)", strike))
			} else {
				signal += 0.1
				parts = append(parts, fmt.Sprintf("Max Call OI at %.0f (slightly below)", strike))
			}
		default:
			parts = append(parts, fmt.Sprintf("Max Call OI at %.0f (at current price)", strike))
		}
	}

	explanation := "Max OI data not available"
	if len(parts) > 0 {
		explanation = strings.Join(parts, "; ")
	}

	return models.RuleResult{
		Name:           r.Name(),
		Description:    "Maximum OI strikes indicate key support/resistance levels",
		SignalStrength: Clamp(signal, -1, 1),
		Triggered:      len(parts) > 0,
		Explanation:    explanation,
	}
}

// SupportResistanceRule scores the proximity of OI-derived support and resistance.
type SupportResistanceRule struct{}

func (SupportResistanceRule) Name() string { return NameSupportResistance }

func (r SupportResistanceRule) Evaluate(fs models.FeatureSet) models.RuleResult {
	const description = "Support and resistance levels indicate price boundaries"

	if !hasPrice(fs.UnderlyingValue) {
		return models.RuleResult{
			Name:        r.Name(),
			Description: description,
			Explanation: "Underlying price not available",
		}
	}

	u := *fs.UnderlyingValue
	var signal float64
	var parts []string

	if fs.Support != nil {
		s := *fs.Support
		dist := (u - s) / u * 100
		switch {
		case dist < srClosePct:
			signal += 0.3
			parts = append(parts, fmt.Sprintf("Strong support at %.0f (very close)", s))
		case dist < srNearPct:
			signal += 0.2
			parts = append(parts, fmt.Sprintf("Support at %.0f (%.1f%% below)", s, dist))
		default:
			parts = append(parts, fmt.Sprintf("Support at %.0f (%.1f%% below)", s, dist))
		}
	}

	if fs.Resistance != nil {
		res := *fs.Resistance
		dist := (res - u) / u * 100
		switch {
		case dist < srClosePct:
			signal -= 0.3
			parts = append(parts, fmt.Sprintf("Strong resistance at %.0f (very close)", res))
		case dist < srNearPct:
			signal -= 0.2
			parts = append(parts, fmt.Sprintf("Resistance at %.0f (%.1f%% above)", res, dist))
		default:
			parts = append(parts, fmt.Sprintf("Resistance at %.0f (%.1f%% above)", res, dist))
		}
	}

	// Boxed in between nearby support and resistance.
	if fs.Support != nil && fs.Resistance != nil {
		supportDist := (u - *fs.Support) / u * 100
		resistanceDist := (*fs.Resistance - u) / u * 100
		if supportDist < srNearPct && resistanceDist < srNearPct {
			signal = 0
			parts = append(parts, "Price between support and resistance - Sideways movement likely")
		}
	}

	explanation := "Support/resistance data not available"
	if len(parts) > 0 {
		explanation = strings.Join(parts, "; ")
	}

	return models.RuleResult{
		Name:           r.Name(),
		Description:    description,
		SignalStrength: Clamp(signal, -1, 1),
		Triggered:      len(parts) > 0,
		Explanation:    explanation,
	}
}

func hasPrice(p *float64) bool {
	return p != nil && *p > 0
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
