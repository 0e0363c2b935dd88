package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nifty-advisor/internal/analysis/rules"
	"nifty-advisor/internal/analysis/scoring"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func clockAt(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 11, 0, 0, 0, ist) }
}

func loadFixture(t *testing.T) models.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "nifty_chain.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return doc
}

func TestRun_BullishFixture(t *testing.T) {
	p := NewPipeline(WithClock(clockAt(2024, time.March, 10)))

	report, err := p.Run(loadFixture(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Bias != models.BiasBullish {
		t.Errorf("bias = %v, want Bullish", report.Bias)
	}
	if math.Abs(report.Score-0.34) > 1e-9 {
		t.Errorf("score = %v, want 0.34", report.Score)
	}
	if report.ScoreCategory != models.CategoryMildBullish {
		t.Errorf("category = %v, want Mild Bullish", report.ScoreCategory)
	}
	if report.Recommendation != models.TradeCall {
		t.Errorf("recommendation = %v, want Call", report.Recommendation)
	}
	if math.Abs(report.ConfidenceScore-0.375) > 1e-9 {
		t.Errorf("confidence = %v, want 0.375", report.ConfidenceScore)
	}
	if report.RiskLevel != models.RiskMedium {
		t.Errorf("risk level = %v, want Medium", report.RiskLevel)
	}
	if report.Blocked() {
		t.Errorf("fixture should not be blocked: %+v", report.Safety)
	}
	if len(report.Warnings) != 1 || !strings.HasPrefix(report.Warnings[0].Message, "CAPITAL RISK DISCLAIMER") {
		t.Errorf("warnings = %v, want only the disclaimer", report.Warnings)
	}
	if report.Rows != 7 || report.Underlying() != 22000 {
		t.Errorf("rows = %d underlying = %v", report.Rows, report.Underlying())
	}
	if !strings.HasPrefix(report.Explanation.SuggestedAction, "Call options are possible") {
		t.Errorf("suggested action = %q", report.Explanation.SuggestedAction)
	}
}

func TestRun_WeeklyExpiryBlocks(t *testing.T) {
	doc := loadFixture(t)
	p := NewPipeline(WithClock(clockAt(2024, time.March, 25)))

	report, err := p.Run(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Blocked() {
		t.Fatalf("expiry 3 days out should block")
	}
	if !strings.HasPrefix(report.Explanation.SuggestedAction, "Trading is not recommended") {
		t.Errorf("suggested action = %q", report.Explanation.SuggestedAction)
	}
	if report.Warnings[1].Severity != models.SeverityBlocking {
		t.Errorf("weekly warning severity = %v", report.Warnings[1].Severity)
	}

	allowed, err := p.Run(doc, Options{BlockWeeklyExpiry: false})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if allowed.Blocked() {
		t.Errorf("weekly expiry allowed should not block")
	}
}

func TestRun_EmptyChain(t *testing.T) {
	doc := models.Document{"records": map[string]interface{}{"data": []interface{}{}}}

	report, err := NewPipeline(WithClock(clockAt(2024, time.March, 10))).Run(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Rows != 0 {
		t.Errorf("rows = %d, want 0", report.Rows)
	}
	if report.Bias != models.BiasNoTrade || report.Recommendation != models.TradeNoTrade {
		t.Errorf("bias/recommendation = %v/%v, want No-Trade/No Trade", report.Bias, report.Recommendation)
	}
	if report.Features.OIBuildupType != models.BuildupUnknown {
		t.Errorf("buildup = %v, want Unknown", report.Features.OIBuildupType)
	}
	var reasons int
	for _, w := range report.Warnings {
		if strings.Contains(w.Message, "missing") {
			reasons++
			if w.Severity != models.SeverityWarning {
				t.Errorf("risk reason severity = %v, want warning", w.Severity)
			}
		}
	}
	if reasons != 2 {
		t.Errorf("expected PCR and underlying missing reasons in warnings: %v", report.Warnings)
	}
}

func TestRun_StructuralError(t *testing.T) {
	_, err := NewPipeline().Run(models.Document{"records": "bad"}, DefaultOptions())
	if !errors.Is(err, apperrors.ErrStructural) {
		t.Fatalf("Run() error = %v, want structural error", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	doc := loadFixture(t)
	p := NewPipeline(WithClock(clockAt(2024, time.March, 22)))

	first, err := p.Run(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := p.Run(doc, DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Errorf("reports differ:\n%s\n%s", a, b)
	}
}

func TestRun_CustomScorerDiverges(t *testing.T) {
	scorer := scoring.NewScorerWithWeights(map[string]float64{
		rules.NamePCR:               0,
		rules.NameOIBuildup:         0,
		rules.NameMaxOI:             1,
		rules.NameSupportResistance: 1,
	})
	p := NewPipeline(WithScorer(scorer), WithClock(clockAt(2024, time.March, 10)))

	report, err := p.Run(loadFixture(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Bias != models.BiasBullish {
		t.Errorf("evaluator bias = %v, want Bullish regardless of scorer weights", report.Bias)
	}
	if report.ScoreCategory != models.CategoryNeutral {
		t.Errorf("category = %v, want Neutral from the custom weights", report.ScoreCategory)
	}
}

func TestRun_LogsAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := NewPipeline(WithLogger(zerolog.New(&buf)), WithClock(clockAt(2024, time.March, 25)))

	if _, err := p.Run(loadFixture(t), DefaultOptions()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"event":"analysis"`) {
		t.Errorf("missing analysis event: %s", out)
	}
	if !strings.Contains(out, `"event":"safety_block"`) {
		t.Errorf("missing safety block event: %s", out)
	}
}

func TestReportJSONShape(t *testing.T) {
	report, err := NewPipeline(WithClock(clockAt(2024, time.March, 10))).Run(loadFixture(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var shape map[string]interface{}
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"bias", "score", "score_category", "recommendation", "confidence_score", "risk_level", "explanation", "warnings"} {
		if _, ok := shape[key]; !ok {
			t.Errorf("report JSON missing %q", key)
		}
	}
	expl := shape["explanation"].(map[string]interface{})
	why := expl["why"].([]interface{})
	if _, ok := why[0].(map[string]interface{})["reason"]; !ok {
		t.Errorf("why entries should carry a reason field: %v", why[0])
	}
	if _, ok := shape["features"]; ok {
		t.Errorf("intermediate results should not be serialized")
	}
}
