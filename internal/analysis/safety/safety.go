// Package safety applies beginner-protection checks to an option chain.
package safety

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nifty-advisor/internal/chain"
	"nifty-advisor/internal/models"
)

// Thresholds.
const (
	WeeklyExpiryDays   = 7
	FarOTMPercent      = 5.0
	LowIVThreshold     = 15.0
	VeryLowIVThreshold = 10.0
)

// Block reasons.
const (
	ReasonWeeklyExpiry = "Weekly expiry detected (blocked for beginners)"
	ReasonVeryLowIV    = "Very low IV detected"
)

// Disclaimer is prepended to every safety result.
const Disclaimer = "CAPITAL RISK DISCLAIMER: Options trading involves significant risk. " +
	"You may lose your entire investment. Only trade with capital you can afford to lose. " +
	"Past performance does not guarantee future results. Consult a financial advisor if needed."

// Message prefixes, used by the explainer to recognize specific warnings.
const (
	PrefixWeeklyExpiry = "WEEKLY EXPIRY DETECTED"
	PrefixFarOTM       = "FAR OTM OPTIONS DETECTED"
	PrefixVeryLowIV    = "VERY LOW IV DETECTED"
	PrefixLowIV        = "LOW IV WARNING"
	PrefixFallingIV    = "FALLING IV RISK"
)

// Accepted expiry date layouts, tried in order.
var expiryLayouts = []string{
	"2-Jan-2006",
	"2-1-2006",
	"2006-1-2",
	"2/1/2006",
}

// Options configures a safety check.
type Options struct {
	BlockWeeklyExpiry bool
}

// DefaultOptions blocks weekly expiries.
func DefaultOptions() Options {
	return Options{BlockWeeklyExpiry: true}
}

// Gate runs the safety checks. Now supplies the reference clock for expiry
// distance; nil means time.Now.
type Gate struct {
	Now func() time.Time
}

// NewGate creates a gate using the given clock.
func NewGate(now func() time.Time) *Gate {
	return &Gate{Now: now}
}

func (g *Gate) now() time.Time {
	if g == nil || g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Check runs the weekly-expiry, far-OTM and IV checks in that order.
func (g *Gate) Check(table *models.ChainTable, doc models.Document, fs models.FeatureSet, opts Options) models.SafetyResult {
	warnings := []models.Warning{{Message: Disclaimer, Severity: models.SeverityWarning}}
	blocked := false
	var reason *string

	if opts.BlockWeeklyExpiry && doc != nil {
		weekly, w := checkWeeklyExpiry(doc, g.now())
		warnings = append(warnings, w...)
		if weekly {
			blocked = true
			reason = strPtr(ReasonWeeklyExpiry)
		}
	}

	warnings = append(warnings, checkFarOTM(table, fs.UnderlyingValue, fs.ATMStrike)...)

	ivWarnings := checkIV(table)
	warnings = append(warnings, ivWarnings...)
	for _, w := range ivWarnings {
		if w.IsBlocking() {
			blocked = true
			if reason == nil {
				reason = strPtr(ReasonVeryLowIV)
			}
		}
	}

	safe := !blocked
	for _, w := range warnings {
		if w.IsBlocking() {
			safe = false
		}
	}

	return models.SafetyResult{
		IsSafe:      safe,
		Warnings:    warnings,
		Blocked:     blocked,
		BlockReason: reason,
	}
}

// ExpiryDates collects the distinct expiry strings from records.expiryDates,
// filtered.expiryDates and every CE/PE expiryDate, in first-seen order.
func ExpiryDates(doc models.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(v interface{}) {
		s, ok := v.(string)
		if !ok || s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	records, _ := doc[chain.KeyRecords].(map[string]interface{})
	filtered, _ := doc[chain.KeyFiltered].(map[string]interface{})
	for _, src := range []map[string]interface{}{records, filtered} {
		if list, ok := src[chain.KeyExpiryDates].([]interface{}); ok {
			for _, v := range list {
				add(v)
			}
		}
	}

	for _, entry := range chain.Records(doc) {
		record, _ := entry.(map[string]interface{})
		for _, key := range []string{models.SideCall, models.SidePut} {
			if side := chain.Side(record, key); side != nil {
				add(side[chain.KeyExpiryDate])
			}
		}
	}
	return out
}

// ParseExpiry parses an expiry string in loc using the accepted layouts.
func ParseExpiry(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntil returns the whole days from now to expiry, floored.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

func checkWeeklyExpiry(doc models.Document, now time.Time) (bool, []models.Warning) {
	dates := ExpiryDates(doc)
	if len(dates) == 0 {
		return false, []models.Warning{{
			Message:  "Unable to determine expiry dates. Exercise caution with expiry selection.",
			Severity: models.SeverityWarning,
		}}
	}

	type near struct {
		raw string
		at  time.Time
	}
	var weekly []near
	for _, d := range dates {
		t, ok := ParseExpiry(d, now.Location())
		if !ok {
			continue
		}
		if days := DaysUntil(t, now); days >= 0 && days <= WeeklyExpiryDays {
			weekly = append(weekly, near{raw: d, at: t})
		}
	}
	if len(weekly) == 0 {
		return false, nil
	}

	sort.SliceStable(weekly, func(i, j int) bool {
		if weekly[i].at.Equal(weekly[j].at) {
			return weekly[i].raw < weekly[j].raw
		}
		return weekly[i].at.Before(weekly[j].at)
	})
	names := make([]string, len(weekly))
	for i, w := range weekly {
		names[i] = w.raw
	}

	return true, []models.Warning{{
		Message: fmt.Sprintf("%s: Options expiring within %d days (%s). "+
			"Weekly expiries are blocked for beginners due to high time decay risk.",
			PrefixWeeklyExpiry, WeeklyExpiryDays, strings.Join(names, ", ")),
		Severity: models.SeverityBlocking,
	}}
}

func checkFarOTM(table *models.ChainTable, underlying, atm *float64) []models.Warning {
	if table.Empty() {
		return nil
	}
	if underlying == nil && atm == nil {
		return []models.Warning{{
			Message:  "Unable to determine ATM strike. Cannot check for far OTM options.",
			Severity: models.SeverityWarning,
		}}
	}

	ref := models.ValueOr(underlying, 0)
	if underlying == nil {
		ref = *atm
	}
	if ref == 0 {
		return nil
	}

	farStrike, farPct := 0.0, 0.0
	found := false
	for _, r := range table.Rows {
		pct := math.Abs((r.StrikePrice-ref)/ref) * 100
		if pct > FarOTMPercent && (!found || pct > farPct) {
			farStrike, farPct, found = r.StrikePrice, pct, true
		}
	}
	if !found {
		return nil
	}

	return []models.Warning{{
		Message: fmt.Sprintf("%s: Some strikes are >%.1f%% away from ATM (e.g., %.0f is %.1f%% OTM). "+
			"Far OTM options have lower probability of profit and higher risk.",
			PrefixFarOTM, FarOTMPercent, farStrike, farPct),
		Severity: models.SeverityWarning,
	}}
}

// IVPool returns every non-null call and put IV in the table.
func IVPool(table *models.ChainTable) []float64 {
	if table == nil {
		return nil
	}
	pool := make([]float64, 0, 2*len(table.Rows))
	for _, r := range table.Rows {
		if r.CallIV != nil {
			pool = append(pool, *r.CallIV)
		}
	}
	for _, r := range table.Rows {
		if r.PutIV != nil {
			pool = append(pool, *r.PutIV)
		}
	}
	return pool
}

func checkIV(table *models.ChainTable) []models.Warning {
	if table.Empty() {
		return nil
	}
	pool := IVPool(table)
	if len(pool) == 0 {
		return []models.Warning{{
			Message:  "IV data not available. Cannot assess volatility risk.",
			Severity: models.SeverityWarning,
		}}
	}

	avg := stat.Mean(pool, nil)
	lowest := floats.Min(pool)

	var out []models.Warning
	switch {
	case lowest < VeryLowIVThreshold:
		out = append(out, models.Warning{
			Message: fmt.Sprintf("%s: Minimum IV is %.1f%% (below %.1f%%). "+
				"Very low IV makes options less profitable and increases risk. Trading is blocked.",
				PrefixVeryLowIV, lowest, VeryLowIVThreshold),
			Severity: models.SeverityBlocking,
		})
	case avg < LowIVThreshold:
		out = append(out, models.Warning{
			Message: fmt.Sprintf("%s: Average IV is %.1f%% (below %.1f%%). "+
				"Low IV reduces option premiums and profit potential. Consider waiting for higher volatility.",
				PrefixLowIV, avg, LowIVThreshold),
			Severity: models.SeverityWarning,
		})
	}

	if avg < LowIVThreshold {
		out = append(out, models.Warning{
			Message: PrefixFallingIV + ": Low IV suggests decreasing volatility. " +
				"Options may lose value faster due to volatility crush.",
			Severity: models.SeverityWarning,
		})
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
