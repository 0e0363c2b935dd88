// Package trading replays analysis reports as simulated ATM option trades.
// It adds no evaluation logic of its own: entries follow the report's
// recommendation and exits use the option's intrinsic value.
package trading

import (
	"time"

	"nifty-advisor/internal/models"
)

// ExitReason explains why a simulated trade was closed.
type ExitReason string

const (
	ExitStopLoss ExitReason = "SL"
	ExitTarget   ExitReason = "Target"
	ExitManual   ExitReason = "Manual"
)

// TradeStatus is the lifecycle state of a simulated trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "Open"
	StatusClosed TradeStatus = "Closed"
)

// BacktestConfig holds simulation parameters.
type BacktestConfig struct {
	InitialCapital float64
	// StopLoss and Target are fractions of the entry premium.
	StopLoss float64
	Target   float64
	Quantity int
	// RespectSafetyGate skips entries on days the safety gate blocked.
	RespectSafetyGate bool
}

// DefaultBacktestConfig returns the default simulation parameters.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:    100000,
		StopLoss:          0.20,
		Target:            0.50,
		Quantity:          1,
		RespectSafetyGate: true,
	}
}

// Day is one dated snapshot with the report the pipeline produced for it.
type Day struct {
	Date   time.Time
	Doc    models.Document
	Report *models.Report
}

// Trade is a simulated option position.
type Trade struct {
	ID              string      `json:"id"`
	EntryDate       time.Time   `json:"entry_date"`
	ExitDate        *time.Time  `json:"exit_date,omitempty"`
	OptionType      string      `json:"option_type"`
	StrikePrice     float64     `json:"strike_price"`
	EntryPrice      float64     `json:"entry_price"`
	ExitPrice       *float64    `json:"exit_price,omitempty"`
	Quantity        int         `json:"quantity"`
	StopLoss        float64     `json:"stop_loss"`
	Target          float64     `json:"target"`
	UnderlyingEntry float64     `json:"underlying_entry"`
	UnderlyingExit  *float64    `json:"underlying_exit,omitempty"`
	PnL             float64     `json:"pnl"`
	PnLPercent      float64     `json:"pnl_percent"`
	ExitReason      ExitReason  `json:"exit_reason,omitempty"`
	Status          TradeStatus `json:"status"`
}

// Cost is the premium paid to open the trade.
func (t Trade) Cost() float64 {
	return t.EntryPrice * float64(t.Quantity)
}

// EquityPoint represents a point on the equity curve.
type EquityPoint struct {
	Date       time.Time `json:"date"`
	Equity     float64   `json:"equity"`
	OpenTrades int       `json:"open_trades"`
}

// BacktestResult represents backtesting results.
type BacktestResult struct {
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	TotalTrades    int           `json:"total_trades"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	WinRate        float64       `json:"win_rate"`
	TotalPnL       float64       `json:"total_pnl"`
	AvgWin         float64       `json:"avg_win"`
	AvgLoss        float64       `json:"avg_loss"`
	ProfitFactor   float64       `json:"profit_factor"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	InitialCapital float64       `json:"initial_capital"`
	FinalCapital   float64       `json:"final_capital"`
	TotalReturn    float64       `json:"total_return"`
}
