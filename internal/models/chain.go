package models

// Document is the decoded, untyped option-chain document as served by NSE.
type Document map[string]interface{}

// Option side keys inside a records.data entry.
const (
	SideCall = "CE"
	SidePut  = "PE"
)

// Column names of a normalized chain table, in display order.
const (
	ColStrikePrice  = "strike_price"
	ColCallOI       = "call_oi"
	ColCallOIChange = "call_oi_change"
	ColCallVolume   = "call_volume"
	ColCallIV       = "call_iv"
	ColPutOI        = "put_oi"
	ColPutOIChange  = "put_oi_change"
	ColPutVolume    = "put_volume"
	ColPutIV        = "put_iv"
)

// ChainColumns returns the full column set of a chain table.
func ChainColumns() []string {
	return []string{
		ColStrikePrice,
		ColCallOI,
		ColCallOIChange,
		ColCallVolume,
		ColCallIV,
		ColPutOI,
		ColPutOIChange,
		ColPutVolume,
		ColPutIV,
	}
}

// ChainRow is one strike's joined call/put data. Nil fields are missing values.
type ChainRow struct {
	StrikePrice  float64  `json:"strike_price"`
	CallOI       *float64 `json:"call_oi"`
	CallOIChange *float64 `json:"call_oi_change"`
	CallVolume   *float64 `json:"call_volume"`
	CallIV       *float64 `json:"call_iv"`
	PutOI        *float64 `json:"put_oi"`
	PutOIChange  *float64 `json:"put_oi_change"`
	PutVolume    *float64 `json:"put_volume"`
	PutIV        *float64 `json:"put_iv"`
}

// ChainTable is the normalized option chain: unique strikes in ascending order.
type ChainTable struct {
	Columns []string   `json:"columns"`
	Rows    []ChainRow `json:"rows"`
}

// NewChainTable returns an empty table carrying the full column set.
func NewChainTable() *ChainTable {
	return &ChainTable{
		Columns: ChainColumns(),
		Rows:    make([]ChainRow, 0),
	}
}

// Empty reports whether the table has no rows.
func (t *ChainTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the number of rows.
func (t *ChainTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ValueOr returns *p, or def when p is nil.
func ValueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
