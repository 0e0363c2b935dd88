// Package chain turns a raw NSE option-chain document into a typed chain table.
package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// Keys of the NSE option-chain document.
const (
	KeyRecords         = "records"
	KeyData            = "data"
	KeyFiltered        = "filtered"
	KeyStrikePrice     = "strikePrice"
	KeyExpiryDate      = "expiryDate"
	KeyExpiryDates     = "expiryDates"
	KeyUnderlyingValue = "underlyingValue"
	KeyOpenInterest    = "openInterest"
	KeyChangeInOI      = "changeinOpenInterest"
	KeyVolume          = "totalTradedVolume"
	KeyIV              = "impliedVolatility"
	KeyLastPrice       = "lastPrice"
)

// Normalize flattens records.data into one row per strike, sorted ascending.
// Missing or non-numeric values become nil; rows with no resolvable strike
// are dropped. An empty data list yields an empty table with all columns.
func Normalize(doc models.Document) (*models.ChainTable, error) {
	data, err := recordsData(doc)
	if err != nil {
		return nil, err
	}

	table := models.NewChainTable()
	seen := make(map[float64]struct{}, len(data))

	for _, entry := range data {
		record, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		ce := Side(record, models.SideCall)
		pe := Side(record, models.SidePut)

		strike, ok := resolveStrike(ce, pe)
		if !ok {
			continue
		}
		if _, dup := seen[strike]; dup {
			continue
		}
		seen[strike] = struct{}{}

		table.Rows = append(table.Rows, models.ChainRow{
			StrikePrice:  strike,
			CallOI:       field(ce, KeyOpenInterest),
			CallOIChange: field(ce, KeyChangeInOI),
			CallVolume:   field(ce, KeyVolume),
			CallIV:       field(ce, KeyIV),
			PutOI:        field(pe, KeyOpenInterest),
			PutOIChange:  field(pe, KeyChangeInOI),
			PutVolume:    field(pe, KeyVolume),
			PutIV:        field(pe, KeyIV),
		})
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].StrikePrice < table.Rows[j].StrikePrice
	})

	return table, nil
}

// Records returns the records entries of doc, or nil when the shape is wrong.
func Records(doc models.Document) []interface{} {
	data, err := recordsData(doc)
	if err != nil {
		return nil
	}
	return data
}

func recordsData(doc models.Document) ([]interface{}, error) {
	if doc == nil {
		return nil, apperrors.NewInvalidTypeError("root", "mapping", "null", "")
	}
	raw, ok := doc[KeyRecords]
	if !ok {
		return nil, apperrors.NewMissingKeyError(KeyRecords, "root")
	}
	records, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewInvalidTypeError(KeyRecords, "mapping", TypeName(raw), "root")
	}
	rawData, ok := records[KeyData]
	if !ok {
		return nil, apperrors.NewMissingKeyError(KeyData, KeyRecords)
	}
	data, ok := rawData.([]interface{})
	if !ok {
		return nil, apperrors.NewInvalidTypeError(KeyData, "list", TypeName(rawData), KeyRecords)
	}
	return data, nil
}

// Side returns the CE or PE mapping of a record; anything that is not a
// mapping is treated as absent.
func Side(record map[string]interface{}, key string) map[string]interface{} {
	if record == nil {
		return nil
	}
	side, _ := record[key].(map[string]interface{})
	return side
}

func resolveStrike(ce, pe map[string]interface{}) (float64, bool) {
	for _, side := range []map[string]interface{}{ce, pe} {
		if side == nil {
			continue
		}
		raw, ok := side[KeyStrikePrice]
		if !ok || raw == nil {
			continue
		}
		v, ok := ToFloat(raw)
		return v, ok
	}
	return 0, false
}

func field(side map[string]interface{}, key string) *float64 {
	if side == nil {
		return nil
	}
	v, ok := ToFloat(side[key])
	if !ok {
		return nil
	}
	return &v
}

// ToFloat coerces a decoded JSON value to a finite float64.
func ToFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// TypeName describes a decoded JSON value for error messages.
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "mapping"
	case []interface{}:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
