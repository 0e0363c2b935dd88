package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/config"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
	"nifty-advisor/internal/nse"
	"nifty-advisor/internal/store"
	"nifty-advisor/internal/trading"
)

var (
	chainFixture = filepath.Join("..", "analysis", "testdata", "nifty_chain.json")
	day1Fixture  = filepath.Join("..", "trading", "testdata", "day1.json")
	day2Fixture  = filepath.Join("..", "trading", "testdata", "day2.json")
)

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NIFTY_ADVISOR_LOG_LEVEL", "error")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestAnalyze_FromFileJSON(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "analyze", "--file", chainFixture, "--allow-weekly", "--format", "json")
	require.NoError(t, err)

	var report models.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, models.BiasBullish, report.Bias)
	assert.Equal(t, models.TradeCall, report.Recommendation)
	assert.NotEmpty(t, report.Explanation.Why)

	out, err = execute(t, dir, "journal", "list", "--json")
	require.NoError(t, err)
	var entries []store.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.BiasBullish, entries[0].Bias)

	out, err = execute(t, dir, "journal", "show", entries[0].ID, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, entries[0].ID)
}

func TestAnalyze_TextOutput(t *testing.T) {
	out, err := execute(t, t.TempDir(), "analyze", "--file", chainFixture, "--detail")
	require.NoError(t, err)

	for _, want := range []string{"NIFTY Options Analysis", "Suggested action", "What can go wrong", "Rules", "PCR Rule", "Warnings"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "output to a buffer must not be coloured")
}

func TestAnalyze_YAMLDetail(t *testing.T) {
	out, err := execute(t, t.TempDir(), "analyze", "--file", chainFixture, "--format", "yaml", "--detail")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "bias: "), out)
	assert.Contains(t, out, "rule_results:")
	assert.Contains(t, out, "severity: ")
}

func TestAnalyze_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "analyze", "--file", chainFixture, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, dir, "analyze", "--file", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to fetch option chain")

	_, err = execute(t, dir, "analyze", "--file", chainFixture, "--weights", filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}

func TestAnalyze_EmptyChainSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"records":{"data":[]}}`), 0o644))

	cfg := config.Default()
	cfg.Analysis.StrictValidation = false
	app := &App{Config: cfg}

	report, err := app.Analyze(context.Background(), &nse.FileFetcher{Path: path}, analysis.DefaultOptions())
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyChain), "err = %v", err)
	assert.ErrorContains(t, err, "please try again later")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))

	out, err = execute(t, dir, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, err = execute(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Block weekly expiry: true")
}

func TestJournalList_Empty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "journal", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = execute(t, t.TempDir(), "journal", "show", "nope")
	assert.Error(t, err)
}

func TestBacktest(t *testing.T) {
	out, err := execute(t, t.TempDir(), "backtest", "--json", "--allow-weekly", day1Fixture, day2Fixture)
	require.NoError(t, err)

	var result trading.BacktestResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 100000.0, result.InitialCapital)
	assert.Len(t, result.EquityCurve, 2)

	_, err = execute(t, t.TempDir(), "backtest", "--quantity", "0", day1Fixture)
	assert.Error(t, err)
}

func TestVisibleLen(t *testing.T) {
	assert.Equal(t, 5, visibleLen("\x1b[32mhello\x1b[0m"))
	assert.Equal(t, 3, visibleLen("₹12"))
}
