// Package store persists analysis results in a local signal journal.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nifty-advisor/internal/models"
)

// Journal records pipeline outputs. Raw option-chain snapshots are never stored.
type Journal interface {
	SaveAnalysis(ctx context.Context, entry *Entry) error
	GetAnalysis(ctx context.Context, id string) (*Entry, error)
	ListAnalyses(ctx context.Context, limit int) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Entry is one journaled analysis.
type Entry struct {
	ID             string                     `json:"id"`
	Timestamp      time.Time                  `json:"timestamp"`
	Symbol         string                     `json:"symbol"`
	Underlying     *float64                   `json:"underlying,omitempty"`
	Bias           models.Bias                `json:"bias"`
	Score          float64                    `json:"score"`
	Category       models.ScoreCategory       `json:"category"`
	Recommendation models.TradeRecommendation `json:"recommendation"`
	Confidence     float64                    `json:"confidence"`
	RiskLevel      models.RiskLevel           `json:"risk_level"`
	Blocked        bool                       `json:"blocked"`
	BlockReason    string                     `json:"block_reason,omitempty"`
	Report         *models.Report             `json:"report,omitempty"`
}

// NewEntry summarises report under a fresh ID.
func NewEntry(report *models.Report, symbol string, at time.Time) *Entry {
	e := &Entry{
		ID:             uuid.NewString(),
		Timestamp:      at.UTC(),
		Symbol:         symbol,
		Underlying:     report.Features.UnderlyingValue,
		Bias:           report.Bias,
		Score:          report.Score,
		Category:       report.ScoreCategory,
		Recommendation: report.Recommendation,
		Confidence:     report.ConfidenceScore,
		RiskLevel:      report.RiskLevel,
		Blocked:        report.Blocked(),
		Report:         report,
	}
	if report.Safety.BlockReason != nil {
		e.BlockReason = *report.Safety.BlockReason
	}
	return e
}

// NopJournal discards everything. It is used when journaling is disabled.
type NopJournal struct{}

func (NopJournal) SaveAnalysis(context.Context, *Entry) error { return nil }

func (NopJournal) GetAnalysis(_ context.Context, id string) (*Entry, error) {
	return nil, notFound(id)
}

func (NopJournal) ListAnalyses(context.Context, int) ([]Entry, error) { return nil, nil }

func (NopJournal) Ping(context.Context) error { return nil }

func (NopJournal) Close() error { return nil }
