// Package features derives market metrics from a normalized option chain.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"nifty-advisor/internal/chain"
	"nifty-advisor/internal/models"
)

// Calculate computes the feature set for table. doc is read for the
// underlying value; it may be nil, in which case every underlying-dependent
// metric is absent. Data-quality gaps never produce an error.
func Calculate(table *models.ChainTable, doc models.Document) models.FeatureSet {
	var underlying *float64
	if doc != nil {
		underlying = UnderlyingValue(doc)
	}

	rows := rowsOf(table)

	fs := models.FeatureSet{
		ATMStrike:       atmStrike(rows, underlying),
		OverallPCR:      overallPCR(rows),
		StrikeWisePCR:   strikeWisePCR(rows),
		MaxCallOIStrike: maxOIStrike(rows, callOI),
		MaxPutOIStrike:  maxOIStrike(rows, putOI),
		OIBuildupType:   buildupType(rows),
		UnderlyingValue: underlying,
	}
	fs.Support, fs.Resistance = supportResistance(rows, underlying)
	return fs
}

// UnderlyingValue checks records.underlyingValue, then filtered.underlyingValue,
// then the first record's CE and PE sides.
func UnderlyingValue(doc models.Document) *float64 {
	records, _ := doc[chain.KeyRecords].(map[string]interface{})
	if v, ok := numeric(records, chain.KeyUnderlyingValue); ok {
		return &v
	}

	filtered, _ := doc[chain.KeyFiltered].(map[string]interface{})
	if v, ok := numeric(filtered, chain.KeyUnderlyingValue); ok {
		return &v
	}

	data := chain.Records(doc)
	if len(data) == 0 {
		return nil
	}
	first, _ := data[0].(map[string]interface{})
	for _, key := range []string{models.SideCall, models.SidePut} {
		if v, ok := numeric(chain.Side(first, key), chain.KeyUnderlyingValue); ok {
			return &v
		}
	}
	return nil
}

func numeric(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, false
	}
	return chain.ToFloat(raw)
}

func rowsOf(table *models.ChainTable) []models.ChainRow {
	if table == nil {
		return nil
	}
	return table.Rows
}

func callOI(r models.ChainRow) float64 { return models.ValueOr(r.CallOI, 0) }
func putOI(r models.ChainRow) float64  { return models.ValueOr(r.PutOI, 0) }

func column(rows []models.ChainRow, get func(models.ChainRow) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = get(r)
	}
	return out
}

// atmStrike returns the strike nearest the underlying; the first row wins ties.
func atmStrike(rows []models.ChainRow, underlying *float64) *float64 {
	if len(rows) == 0 || underlying == nil {
		return nil
	}
	best := 0
	bestDist := math.Abs(rows[0].StrikePrice - *underlying)
	for i := 1; i < len(rows); i++ {
		d := math.Abs(rows[i].StrikePrice - *underlying)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return models.Float(rows[best].StrikePrice)
}

func overallPCR(rows []models.ChainRow) *float64 {
	if len(rows) == 0 {
		return nil
	}
	totalCall := floats.Sum(column(rows, callOI))
	if totalCall == 0 {
		return nil
	}
	totalPut := floats.Sum(column(rows, putOI))
	return models.Float(totalPut / totalCall)
}

func strikeWisePCR(rows []models.ChainRow) []models.StrikePCR {
	out := make([]models.StrikePCR, 0, len(rows))
	for _, r := range rows {
		c := callOI(r)
		if c <= 0 {
			continue
		}
		out = append(out, models.StrikePCR{Strike: r.StrikePrice, PCR: putOI(r) / c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

func maxOIStrike(rows []models.ChainRow, get func(models.ChainRow) float64) *float64 {
	if len(rows) == 0 {
		return nil
	}
	values := column(rows, get)
	idx := floats.MaxIdx(values)
	if values[idx] <= 0 {
		return nil
	}
	return models.Float(rows[idx].StrikePrice)
}

// supportResistance picks the max put-OI strike below the underlying and the
// max call-OI strike above it.
func supportResistance(rows []models.ChainRow, underlying *float64) (support, resistance *float64) {
	if len(rows) == 0 || underlying == nil {
		return nil, nil
	}
	var below, above []models.ChainRow
	for _, r := range rows {
		switch {
		case r.StrikePrice < *underlying:
			below = append(below, r)
		case r.StrikePrice > *underlying:
			above = append(above, r)
		}
	}
	return maxOIStrike(below, putOI), maxOIStrike(above, callOI)
}

func buildupType(rows []models.ChainRow) models.OIBuildup {
	if len(rows) == 0 {
		return models.BuildupUnknown
	}
	callChange := floats.Sum(column(rows, func(r models.ChainRow) float64 {
		return models.ValueOr(r.CallOIChange, 0)
	}))
	putChange := floats.Sum(column(rows, func(r models.ChainRow) float64 {
		return models.ValueOr(r.PutOIChange, 0)
	}))

	switch {
	case callChange > 0 && putChange > 0:
		return models.BuildupLong
	case callChange < 0 && putChange < 0:
		return models.BuildupShort
	case (callChange > 0 && putChange < 0) || (callChange < 0 && putChange > 0):
		return models.BuildupUnwinding
	default:
		return models.BuildupMixed
	}
}
