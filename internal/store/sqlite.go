package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// DefaultListLimit caps ListAnalyses when no limit is given.
const DefaultListLimit = 20

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (creating if needed) the journal at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		underlying REAL,
		bias TEXT NOT NULL,
		score REAL NOT NULL,
		category TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		confidence REAL NOT NULL,
		risk_level TEXT NOT NULL,
		blocked INTEGER DEFAULT 0,
		block_reason TEXT,
		report_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);
	CREATE INDEX IF NOT EXISTS idx_analyses_symbol ON analyses(symbol, timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// SaveAnalysis inserts or replaces entry.
func (j *SQLiteJournal) SaveAnalysis(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return apperrors.NewValidationError("id", "", "journal entry requires an id")
	}

	reportJSON := []byte("{}")
	if entry.Report != nil {
		var err error
		if reportJSON, err = json.Marshal(entry.Report); err != nil {
			return apperrors.NewDataError("analysis", entry.ID, "encode report", err)
		}
	}
	blocked := 0
	if entry.Blocked {
		blocked = 1
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses (id, timestamp, symbol, underlying, bias, score, category, recommendation, confidence, risk_level, blocked, block_reason, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp.UTC(), entry.Symbol, entry.Underlying, string(entry.Bias), entry.Score,
		string(entry.Category), string(entry.Recommendation), entry.Confidence, string(entry.RiskLevel),
		blocked, entry.BlockReason, string(reportJSON))
	if err != nil {
		return apperrors.NewDataError("analysis", entry.ID, "save", errors.Join(apperrors.ErrDatabaseError, err))
	}
	return nil
}

const selectColumns = `SELECT id, timestamp, symbol, underlying, bias, score, category, recommendation, confidence, risk_level, blocked, COALESCE(block_reason, ''), report_json FROM analyses`

// GetAnalysis returns the entry with id, including the decoded report.
func (j *SQLiteJournal) GetAnalysis(ctx context.Context, id string) (*Entry, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	e, err := scanEntry(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.NewDataError("analysis", id, "load", errors.Join(apperrors.ErrDatabaseError, err))
	}
	return e, nil
}

// ListAnalyses returns the newest entries first, without their full reports.
func (j *SQLiteJournal) ListAnalyses(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := j.db.QueryContext(ctx, selectColumns+" ORDER BY timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Ping checks the database connection.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner, withReport bool) (*Entry, error) {
	var (
		e          Entry
		underlying sql.NullFloat64
		bias       string
		category   string
		rec        string
		risk       string
		blocked    int
		reportJSON string
	)
	if err := s.Scan(&e.ID, &e.Timestamp, &e.Symbol, &underlying, &bias, &e.Score, &category, &rec,
		&e.Confidence, &risk, &blocked, &e.BlockReason, &reportJSON); err != nil {
		return nil, err
	}

	if underlying.Valid {
		v := underlying.Float64
		e.Underlying = &v
	}
	e.Bias = models.Bias(bias)
	e.Category = models.ScoreCategory(category)
	e.Recommendation = models.TradeRecommendation(rec)
	e.RiskLevel = models.RiskLevel(risk)
	e.Blocked = blocked == 1

	if withReport {
		var report models.Report
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		e.Report = &report
	}
	return &e, nil
}

func notFound(id string) error {
	return apperrors.NewDataError("analysis", id, "not found", apperrors.ErrDataNotFound)
}
