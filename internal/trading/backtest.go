package trading

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/chain"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// strikeTolerance absorbs float noise when matching strikes in the raw document.
const strikeTolerance = 0.01

// Engine runs the analysis pipeline over dated snapshots and simulates trades.
type Engine struct {
	cfg          BacktestConfig
	opts         analysis.Options
	pipelineOpts []analysis.Option
	logger       zerolog.Logger
}

// NewEngine creates a backtest engine. pipelineOpts configure the pipeline
// built for each day; the clock is always pinned to the snapshot date.
func NewEngine(cfg BacktestConfig, opts analysis.Options, logger zerolog.Logger, pipelineOpts ...analysis.Option) *Engine {
	return &Engine{
		cfg:          cfg,
		opts:         opts,
		pipelineOpts: pipelineOpts,
		logger:       logger,
	}
}

// Run analyses each snapshot in order and simulates the resulting trades.
func (e *Engine) Run(ctx context.Context, snapshots []Snapshot) (*BacktestResult, error) {
	if err := ValidateConfig(e.cfg); err != nil {
		return nil, err
	}

	days := make([]Day, 0, len(snapshots))
	for _, s := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		date := s.Date
		opts := append(append([]analysis.Option{}, e.pipelineOpts...),
			analysis.WithClock(func() time.Time { return date }))
		report, err := analysis.NewPipeline(opts...).Run(s.Doc, e.opts)
		if err != nil {
			return nil, apperrors.Wrapf(err, "analyse snapshot %s", s.Source)
		}

		e.logger.Debug().
			Str("source", s.Source).
			Time("date", s.Date).
			Str("recommendation", string(report.Recommendation)).
			Bool("blocked", report.Blocked()).
			Msg("Backtest day analysed")

		days = append(days, Day{Date: s.Date, Doc: s.Doc, Report: report})
	}

	return Simulate(days, e.cfg)
}

// ValidateConfig rejects parameters the simulation cannot use.
func ValidateConfig(cfg BacktestConfig) error {
	switch {
	case cfg.InitialCapital < 0:
		return apperrors.NewValidationError("initial_capital", cfg.InitialCapital, "must be >= 0")
	case cfg.StopLoss <= 0 || cfg.StopLoss > 1:
		return apperrors.NewValidationError("stop_loss", cfg.StopLoss, "must be in (0, 1]")
	case cfg.Target <= 0:
		return apperrors.NewValidationError("target", cfg.Target, "must be > 0")
	case cfg.Quantity < 1:
		return apperrors.NewValidationError("quantity", cfg.Quantity, "must be >= 1")
	}
	return nil
}

// Simulate replays days in order. A trade is held for exactly one day: each
// day first closes the previous day's trade at that day's underlying, then may
// open one new trade. A trade opened on the last day is closed against it.
// At most one trade is ever open.
func Simulate(days []Day, cfg BacktestConfig) (*BacktestResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	result := &BacktestResult{
		Trades:         make([]Trade, 0),
		EquityCurve:    make([]EquityPoint, 0, len(days)),
		InitialCapital: cfg.InitialCapital,
	}

	cash := cfg.InitialCapital
	var open *Trade

	closeOpen := func(day Day) {
		if open == nil {
			return
		}
		CloseTrade(open, day)
		cash += *open.ExitPrice * float64(open.Quantity)
		result.Trades = append(result.Trades, *open)
		open = nil
	}

	for _, day := range days {
		closeOpen(day)

		if t := OpenTrade(day, cfg); t != nil && cash >= t.Cost() {
			cash -= t.Cost()
			open = t
		}

		point := EquityPoint{Date: day.Date, Equity: cash}
		if open != nil {
			point.Equity += open.Cost()
			point.OpenTrades = 1
		}
		result.EquityCurve = append(result.EquityCurve, point)
	}

	if len(days) > 0 {
		closeOpen(days[len(days)-1])
	}

	result.FinalCapital = cash
	calculateMetrics(result)
	return result, nil
}

// OpenTrade opens an ATM trade in the report's direction, or returns nil when
// the day offers no trade or no usable premium.
func OpenTrade(day Day, cfg BacktestConfig) *Trade {
	r := day.Report
	if r == nil {
		return nil
	}

	var side string
	switch r.Recommendation {
	case models.TradeCall:
		side = models.SideCall
	case models.TradePut:
		side = models.SidePut
	default:
		return nil
	}
	if cfg.RespectSafetyGate && r.Blocked() {
		return nil
	}

	atm, underlying := r.Features.ATMStrike, r.Features.UnderlyingValue
	if atm == nil || underlying == nil {
		return nil
	}
	price, ok := OptionPrice(day.Doc, *atm, side)
	if !ok || price <= 0 {
		return nil
	}

	return &Trade{
		ID:              uuid.NewString(),
		EntryDate:       day.Date,
		OptionType:      side,
		StrikePrice:     *atm,
		EntryPrice:      price,
		Quantity:        cfg.Quantity,
		StopLoss:        cfg.StopLoss,
		Target:          cfg.Target,
		UnderlyingEntry: *underlying,
		Status:          StatusOpen,
	}
}

// CloseTrade exits t against day. A missing underlying exits at the entry level.
func CloseTrade(t *Trade, day Day) {
	underlying := t.UnderlyingEntry
	if day.Report != nil && day.Report.Features.UnderlyingValue != nil {
		underlying = *day.Report.Features.UnderlyingValue
	}

	exit, reason := ExitPrice(t.OptionType, t.StrikePrice, underlying, t.EntryPrice, t.StopLoss, t.Target)

	date := day.Date
	t.ExitDate = &date
	t.ExitPrice = &exit
	t.UnderlyingExit = &underlying
	t.PnL = (exit - t.EntryPrice) * float64(t.Quantity)
	if t.EntryPrice > 0 {
		t.PnLPercent = (exit - t.EntryPrice) / t.EntryPrice
	}
	t.ExitReason = reason
	t.Status = StatusClosed
}

// ExitPrice values the option at its intrinsic value and applies the stop
// loss and target as fractions of the entry premium.
func ExitPrice(side string, strike, underlying, entry, stopLoss, target float64) (float64, ExitReason) {
	var intrinsic float64
	if side == models.SideCall {
		intrinsic = math.Max(0, underlying-strike)
	} else {
		intrinsic = math.Max(0, strike-underlying)
	}

	var change float64
	if entry > 0 {
		change = (intrinsic - entry) / entry
	}

	switch {
	case change <= -stopLoss:
		return entry * (1 - stopLoss), ExitStopLoss
	case change >= target:
		return entry * (1 + target), ExitTarget
	}
	return intrinsic, ExitManual
}

// OptionPrice returns the last traded price of the side at strike from the
// raw document. The first matching record with a numeric price wins.
func OptionPrice(doc models.Document, strike float64, side string) (float64, bool) {
	for _, raw := range chain.Records(doc) {
		record, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		opt := chain.Side(record, side)
		if opt == nil {
			continue
		}
		s, ok := chain.ToFloat(opt[chain.KeyStrikePrice])
		if !ok || math.Abs(s-strike) >= strikeTolerance {
			continue
		}
		if price, ok := chain.ToFloat(opt[chain.KeyLastPrice]); ok {
			return price, true
		}
	}
	return 0, false
}

func calculateMetrics(result *BacktestResult) {
	var pnls, wins, losses []float64
	for _, t := range result.Trades {
		if t.Status != StatusClosed {
			continue
		}
		pnls = append(pnls, t.PnL)
		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
		case t.PnL < 0:
			losses = append(losses, t.PnL)
		}
	}

	result.TotalTrades = len(pnls)
	result.WinningTrades = len(wins)
	result.LosingTrades = len(losses)
	if result.TotalTrades > 0 {
		result.WinRate = float64(len(wins)) / float64(result.TotalTrades)
		result.TotalPnL = floats.Sum(pnls)
	}
	if len(wins) > 0 {
		result.AvgWin = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		result.AvgLoss = stat.Mean(losses, nil)
	}
	if result.AvgLoss != 0 {
		result.ProfitFactor = math.Abs(result.AvgWin / result.AvgLoss)
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)
	if result.InitialCapital > 0 {
		result.TotalReturn = (result.FinalCapital - result.InitialCapital) / result.InitialCapital
	}
}

// maxDrawdown returns the largest peak-to-trough fall as a positive fraction.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
