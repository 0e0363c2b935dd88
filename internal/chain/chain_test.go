package chain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

func side(strike, oi, chg, vol, iv float64) map[string]interface{} {
	return map[string]interface{}{
		"strikePrice":          strike,
		"expiryDate":           "28-Mar-2024",
		"openInterest":         oi,
		"changeinOpenInterest": chg,
		"totalTradedVolume":    vol,
		"impliedVolatility":    iv,
	}
}

func docWith(data ...interface{}) models.Document {
	return models.Document{
		"records": map[string]interface{}{
			"underlyingValue": 22000.0,
			"data":            data,
		},
	}
}

func TestNormalize_SortsAndJoinsSides(t *testing.T) {
	doc := docWith(
		map[string]interface{}{"CE": side(22100, 500, 10, 1000, 14.5), "PE": side(22100, 300, -5, 800, 15.1)},
		map[string]interface{}{"CE": side(21900, 100, 1, 50, 16.0)},
		map[string]interface{}{"PE": side(22000, 700, 20, 900, 13.2)},
	)

	table, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Normalize() rows = %d, want 3", table.Len())
	}

	wantStrikes := []float64{21900, 22000, 22100}
	for i, row := range table.Rows {
		if row.StrikePrice != wantStrikes[i] {
			t.Errorf("row %d strike = %v, want %v", i, row.StrikePrice, wantStrikes[i])
		}
	}

	if table.Rows[0].PutOI != nil {
		t.Errorf("call-only strike should have nil put OI, got %v", *table.Rows[0].PutOI)
	}
	if table.Rows[1].CallOI != nil {
		t.Errorf("put-only strike should have nil call OI, got %v", *table.Rows[1].CallOI)
	}
	if got := models.ValueOr(table.Rows[2].PutOIChange, 0); got != -5 {
		t.Errorf("put OI change = %v, want -5", got)
	}
	if got := models.ValueOr(table.Rows[2].CallIV, 0); got != 14.5 {
		t.Errorf("call IV = %v, want 14.5", got)
	}
	if len(table.Columns) != 9 {
		t.Errorf("columns = %d, want 9", len(table.Columns))
	}
}

func TestNormalize_CoercesAndDrops(t *testing.T) {
	ce := side(22000, 0, 0, 0, 0)
	ce["openInterest"] = "1,200"
	ce["totalTradedVolume"] = "450"
	ce["impliedVolatility"] = json.Number("12.75")
	ce["changeinOpenInterest"] = nil

	doc := docWith(
		map[string]interface{}{"CE": ce, "PE": "not-a-mapping"},
		map[string]interface{}{"CE": map[string]interface{}{"openInterest": 10.0}},
		map[string]interface{}{"CE": map[string]interface{}{"strikePrice": "abc"}},
		"garbage",
	)

	table, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Normalize() rows = %d, want 1", table.Len())
	}
	row := table.Rows[0]
	if row.CallOI != nil {
		t.Errorf("unparseable OI should be nil, got %v", *row.CallOI)
	}
	if row.CallOIChange != nil {
		t.Errorf("null OI change should be nil")
	}
	if got := models.ValueOr(row.CallVolume, -1); got != 450 {
		t.Errorf("numeric string volume = %v, want 450", got)
	}
	if got := models.ValueOr(row.CallIV, -1); got != 12.75 {
		t.Errorf("json.Number IV = %v, want 12.75", got)
	}
	if row.PutOI != nil || row.PutIV != nil {
		t.Errorf("non-mapping PE side should leave put fields nil")
	}
}

func TestNormalize_DuplicateStrikeFirstWins(t *testing.T) {
	doc := docWith(
		map[string]interface{}{"CE": side(22000, 100, 0, 0, 10)},
		map[string]interface{}{"CE": side(22000, 999, 0, 0, 10)},
	)
	table, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("rows = %d, want 1", table.Len())
	}
	if got := models.ValueOr(table.Rows[0].CallOI, 0); got != 100 {
		t.Errorf("call OI = %v, want first occurrence 100", got)
	}
}

func TestNormalize_EmptyData(t *testing.T) {
	table, err := Normalize(docWith())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !table.Empty() {
		t.Errorf("expected empty table")
	}
	if len(table.Columns) != len(models.ChainColumns()) {
		t.Errorf("empty table should carry all columns")
	}
}

func TestNormalize_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  models.Document
		kind apperrors.StructuralKind
	}{
		{"nil root", nil, apperrors.KindInvalidType},
		{"records missing", models.Document{"filtered": map[string]interface{}{}}, apperrors.KindMissingKey},
		{"records not mapping", models.Document{"records": []interface{}{}}, apperrors.KindInvalidType},
		{"data missing", models.Document{"records": map[string]interface{}{}}, apperrors.KindMissingKey},
		{"data not list", models.Document{"records": map[string]interface{}{"data": "x"}}, apperrors.KindInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.doc)
			if !errors.Is(err, apperrors.ErrStructural) {
				t.Fatalf("Normalize() error = %v, want structural error", err)
			}
			var se *apperrors.StructuralError
			if !errors.As(err, &se) || se.Kind != tt.kind {
				t.Errorf("Normalize() kind = %v, want %v", se, tt.kind)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := docWith(map[string]interface{}{"CE": side(22000, 1, 1, 1, 1), "PE": nil})

	tests := []struct {
		name    string
		doc     models.Document
		wantErr bool
		kind    apperrors.StructuralKind
		path    string
	}{
		{name: "valid", doc: valid},
		{name: "empty root", doc: models.Document{}, wantErr: true, kind: apperrors.KindEmptyData},
		{name: "records missing", doc: models.Document{"x": 1}, wantErr: true, kind: apperrors.KindMissingKey},
		{name: "data empty", doc: docWith(), wantErr: true, kind: apperrors.KindEmptyData, path: "records"},
		{
			name:    "record not mapping",
			doc:     docWith("oops"),
			wantErr: true, kind: apperrors.KindInvalidType, path: "records.data[0]",
		},
		{
			name:    "no sides",
			doc:     docWith(map[string]interface{}{"CE": nil}),
			wantErr: true, kind: apperrors.KindMissingKey, path: "records.data[0]",
		},
		{
			name:    "side missing expiry",
			doc:     docWith(map[string]interface{}{"PE": map[string]interface{}{"strikePrice": 22000.0}}),
			wantErr: true, kind: apperrors.KindMissingKey, path: "records.data[0].PE",
		},
		{
			name: "filtered not mapping",
			doc: func() models.Document {
				d := docWith(map[string]interface{}{"CE": side(22000, 1, 1, 1, 1)})
				d["filtered"] = []interface{}{}
				return d
			}(),
			wantErr: true, kind: apperrors.KindInvalidType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			var se *apperrors.StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("Validate() error = %v, want StructuralError", err)
			}
			if se.Kind != tt.kind {
				t.Errorf("Validate() kind = %v, want %v", se.Kind, tt.kind)
			}
			if tt.path != "" && se.Path != tt.path {
				t.Errorf("Validate() path = %q, want %q", se.Path, tt.path)
			}
		})
	}
}

// Property: normalized rows are unique by strike and strictly ascending.
func TestProperty_NormalizeSortedUnique(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("rows are strictly ascending by strike", prop.ForAll(
		func(strikes []int) bool {
			data := make([]interface{}, 0, len(strikes))
			for _, s := range strikes {
				data = append(data, map[string]interface{}{"CE": side(float64(s*50), 1, 0, 0, 10)})
			}
			table, err := Normalize(docWith(data...))
			if err != nil {
				return false
			}
			for i := 1; i < table.Len(); i++ {
				if table.Rows[i].StrikePrice <= table.Rows[i-1].StrikePrice {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(300, 600)),
	))

	properties.TestingRun(t)
}
