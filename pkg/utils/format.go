// Package utils provides shared helpers for formatting, retries and market time.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatIndianCurrency formats a rupee amount with Indian digit grouping,
// e.g. 123456.5 -> ₹1,23,456.50.
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	intPart, decPart, _ := strings.Cut(str, ".")

	result := "₹" + groupIndian(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupIndian inserts separators: last three digits, then pairs.
func groupIndian(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 2 {
		result = s[len(s)-2:] + "," + result
		s = s[:len(s)-2]
	}
	return s + "," + result
}

// FormatPnL formats P&L with an explicit sign for gains.
func FormatPnL(pnl float64) string {
	formatted := FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatScore formats a signed score in [-1, 1].
func FormatScore(score float64) string {
	return fmt.Sprintf("%+.2f", score)
}

// FormatConfidence renders a [0, 1] confidence as a whole percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// FormatStrike renders a strike price, dropping the fraction when it is whole.
func FormatStrike(strike float64) string {
	if strike == math.Trunc(strike) {
		return groupIndian(fmt.Sprintf("%.0f", strike))
	}
	return fmt.Sprintf("%.2f", strike)
}

// FormatOptional renders an optional number or "N/A".
func FormatOptional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

// FormatCompact formats a rupee amount in lakhs or crores when large.
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e7:
		return fmt.Sprintf("%.2f Cr", amount/1e7)
	case abs >= 1e5:
		return fmt.Sprintf("%.2f L", amount/1e5)
	}
	return FormatIndianCurrency(amount)
}
