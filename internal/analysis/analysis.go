// Package analysis wires the option-chain stages into a single pipeline:
// normalize, compute features, evaluate rules, score, run safety checks and explain.
package analysis

import (
	"time"

	"github.com/rs/zerolog"

	"nifty-advisor/internal/analysis/explain"
	"nifty-advisor/internal/analysis/features"
	"nifty-advisor/internal/analysis/rules"
	"nifty-advisor/internal/analysis/safety"
	"nifty-advisor/internal/analysis/scoring"
	"nifty-advisor/internal/chain"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/logging"
	"nifty-advisor/internal/models"
)

// Options are the per-run caller settings.
type Options struct {
	BlockWeeklyExpiry bool
}

// DefaultOptions blocks weekly expiries.
func DefaultOptions() Options {
	return Options{BlockWeeklyExpiry: true}
}

// Pipeline runs the full analysis. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	evaluator *rules.Evaluator
	scorer    *scoring.Scorer
	gate      *safety.Gate
	logger    zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithScorer replaces the default scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scorer = s
		}
	}
}

// WithEvaluator replaces the default rule evaluator.
func WithEvaluator(e *rules.Evaluator) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.evaluator = e
		}
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.gate = safety.NewGate(now)
	}
}

// WithLogger sets the logger for per-run events.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline with default stages.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		evaluator: rules.NewEvaluator(),
		scorer:    scoring.NewScorer(),
		gate:      safety.NewGate(nil),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run analyses doc. Only a structurally malformed document is an error;
// missing data degrades the report instead.
func (p *Pipeline) Run(doc models.Document, opts Options) (*models.Report, error) {
	start := time.Now()

	table, err := chain.Normalize(doc)
	if err != nil {
		return nil, err
	}

	fs := features.Calculate(table, doc)
	eval := p.evaluator.Evaluate(fs)

	score, err := p.scorer.Score(eval.RuleResults)
	if err != nil {
		return nil, apperrors.Wrap(err, "score rule results")
	}

	safe := p.gate.Check(table, doc, fs, safety.Options{BlockWeeklyExpiry: opts.BlockWeeklyExpiry})
	expl := explain.Explain(eval, score, &safe)

	report := &models.Report{
		Bias:            eval.MarketBias,
		Score:           score.FinalScore,
		ScoreCategory:   score.Category,
		Recommendation:  eval.TradeRecommendation,
		ConfidenceScore: eval.ConfidenceScore,
		RiskLevel:       eval.RiskLevel,
		Explanation:     models.NewReportExplanation(expl),
		Warnings:        reportWarnings(safe, eval.RiskReasons),
		Features:        fs,
		Evaluation:      eval,
		Scoring:         *score,
		Safety:          safe,
		Rows:            table.Len(),
	}

	if safe.Blocked && safe.BlockReason != nil {
		logging.LogSafetyBlock(p.logger, *safe.BlockReason, len(safe.Warnings))
	}
	logging.LogAnalysis(p.logger, string(report.Bias), string(report.ScoreCategory),
		string(report.Recommendation), report.Score, report.ConfidenceScore, safe.Blocked, time.Since(start))

	return report, nil
}

// RequireRows returns an error wrapping apperrors.ErrEmptyChain when report
// was built from a chain without usable rows.
func RequireRows(report *models.Report) error {
	if report == nil || report.Rows == 0 {
		return apperrors.Wrap(apperrors.ErrEmptyChain, "analysis")
	}
	return nil
}

// reportWarnings lists safety warnings with their own severity, then every
// evaluation risk reason as an advisory.
func reportWarnings(safe models.SafetyResult, reasons []string) []models.Warning {
	out := make([]models.Warning, 0, len(safe.Warnings)+len(reasons))
	out = append(out, safe.Warnings...)
	for _, r := range reasons {
		out = append(out, models.Warning{Message: r, Severity: models.SeverityWarning})
	}
	return out
}
