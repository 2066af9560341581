package service

import (
	"math"
	"testing"

	"offerguard-backend/models"
)

func candidate(topic string, severity models.Severity, confidence float64, layer models.Layer) models.ViolationCandidate {
	return models.ViolationCandidate{
		Topic:       topic,
		Severity:    severity,
		Confidence:  confidence,
		Explanation: string(layer) + " explanation",
		SourceLayer: layer,
	}
}

func TestReconcileCrossValidated(t *testing.T) {
	p := candidate(models.TopicNonCompete, models.SeverityError, 0.9, models.LayerPattern)
	p.Citation = models.StringPtr("pattern citation")
	p.EvidenceText = models.StringPtr("pattern evidence")
	l := candidate(models.TopicNonCompete, models.SeverityWarning, 0.7, models.LayerLLM)
	l.Citation = models.StringPtr("llm citation")

	got := NewCrossValidator(DefaultBoostFactor).Reconcile([]models.ViolationCandidate{p}, []models.ViolationCandidate{l}, 0.7)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(got))
	}
	v := got[0]
	if v.Validation != models.ValidationCrossValidated {
		t.Fatalf("expected cross_validated, got %s", v.Validation)
	}
	if math.Abs(v.Confidence-0.84) > 1e-9 {
		t.Fatalf("expected boosted confidence 0.84, got %v", v.Confidence)
	}
	if v.Severity != models.SeverityError {
		t.Fatalf("expected the higher severity, got %s", v.Severity)
	}
	if v.Explanation != "llm explanation" || models.StringValue(v.Citation) != "llm citation" {
		t.Fatalf("expected LLM explanation and citation, got %+v", v)
	}
	if models.StringValue(v.EvidenceText) != "pattern evidence" {
		t.Fatalf("expected pattern evidence to fill the gap, got %v", v.EvidenceText)
	}
}

func TestReconcileBoostIsCapped(t *testing.T) {
	p := candidate(models.TopicNonCompete, models.SeverityError, 0.9, models.LayerPattern)
	l := candidate(models.TopicNonCompete, models.SeverityError, 0.95, models.LayerLLM)
	got := NewCrossValidator(DefaultBoostFactor).Reconcile([]models.ViolationCandidate{p}, []models.ViolationCandidate{l}, 0.7)
	if got[0].Confidence != 1 {
		t.Fatalf("expected confidence capped at 1, got %v", got[0].Confidence)
	}
}

func TestReconcileSingleLayerAndFloor(t *testing.T) {
	pattern := []models.ViolationCandidate{
		candidate(models.TopicSalaryHistory, models.SeverityError, 0.85, models.LayerPattern),
		candidate(models.TopicBackgroundCheck, models.SeverityWarning, 0.6, models.LayerPattern),
	}
	llm := []models.ViolationCandidate{
		candidate(models.TopicDrugScreening, models.SeverityWarning, 0.75, models.LayerLLM),
		candidate(models.TopicChoiceOfLaw, models.SeverityError, 0.5, models.LayerLLM),
	}

	got := NewCrossValidator(DefaultBoostFactor).Reconcile(pattern, llm, 0.7)
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %+v", len(got), got)
	}
	if got[0].Topic != models.TopicSalaryHistory || got[0].Validation != models.ValidationPatternOnly || got[0].Confidence != 0.85 {
		t.Fatalf("unexpected first violation %+v", got[0])
	}
	if got[1].Topic != models.TopicDrugScreening || got[1].Validation != models.ValidationLLMOnly || got[1].Confidence != 0.75 {
		t.Fatalf("unexpected second violation %+v", got[1])
	}
}

func TestReconcileFloorIsInclusive(t *testing.T) {
	p := []models.ViolationCandidate{candidate(models.TopicNonCompete, models.SeverityError, 0.7, models.LayerPattern)}
	if got := NewCrossValidator(DefaultBoostFactor).Reconcile(p, nil, 0.7); len(got) != 1 {
		t.Fatalf("confidence equal to the floor should survive, got %d", len(got))
	}
	if got := NewCrossValidator(DefaultBoostFactor).Reconcile(p, nil, math.Nextafter(0.7, 1)); len(got) != 0 {
		t.Fatalf("confidence below the floor should be dropped, got %d", len(got))
	}
}

func TestReconcileOrdering(t *testing.T) {
	llm := []models.ViolationCandidate{
		candidate("b-topic", models.SeverityWarning, 0.9, models.LayerLLM),
		candidate("a-topic", models.SeverityWarning, 0.9, models.LayerLLM),
		candidate("c-topic", models.SeverityError, 0.75, models.LayerLLM),
		candidate("d-topic", models.SeverityInfo, 0.99, models.LayerLLM),
		candidate("e-topic", models.SeverityWarning, 0.95, models.LayerLLM),
	}
	got := NewCrossValidator(DefaultBoostFactor).Reconcile(nil, llm, 0)
	want := []string{"c-topic", "e-topic", "a-topic", "b-topic", "d-topic"}
	for i, topic := range want {
		if got[i].Topic != topic {
			t.Fatalf("position %d: got %s, want %s", i, got[i].Topic, topic)
		}
	}
}

func TestReconcileMonotonicity(t *testing.T) {
	v := NewCrossValidator(DefaultBoostFactor)
	for c := 0.0; c <= 1.0; c += 0.05 {
		l := candidate(models.TopicNonCompete, models.SeverityError, c, models.LayerLLM)
		p := candidate(models.TopicNonCompete, models.SeverityError, 0.9, models.LayerPattern)

		alone := v.Reconcile(nil, []models.ViolationCandidate{l}, 0)
		both := v.Reconcile([]models.ViolationCandidate{p}, []models.ViolationCandidate{l}, 0)
		if both[0].Confidence < alone[0].Confidence {
			t.Fatalf("boost decreased confidence at %v: %v < %v", c, both[0].Confidence, alone[0].Confidence)
		}
		if both[0].Confidence < 0 || both[0].Confidence > 1 {
			t.Fatalf("confidence out of bounds: %v", both[0].Confidence)
		}
	}
}

func TestReconcileClampsInputConfidence(t *testing.T) {
	llm := []models.ViolationCandidate{candidate(models.TopicNonCompete, models.SeverityError, 3, models.LayerLLM)}
	got := NewCrossValidator(DefaultBoostFactor).Reconcile(nil, llm, 0)
	if got[0].Confidence != 1 {
		t.Fatalf("expected clamped confidence, got %v", got[0].Confidence)
	}
}

func TestNewCrossValidatorNeverShrinks(t *testing.T) {
	p := candidate(models.TopicNonCompete, models.SeverityError, 0.9, models.LayerPattern)
	l := candidate(models.TopicNonCompete, models.SeverityError, 0.8, models.LayerLLM)
	got := NewCrossValidator(0.5).Reconcile([]models.ViolationCandidate{p}, []models.ViolationCandidate{l}, 0)
	if got[0].Confidence != 0.8 {
		t.Fatalf("expected unchanged confidence, got %v", got[0].Confidence)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name       string
		severities []models.Severity
		compliant  bool
		risk       models.RiskLevel
	}{
		{"empty", nil, true, models.RiskLow},
		{"info only", []models.Severity{models.SeverityInfo}, true, models.RiskLow},
		{"warning", []models.Severity{models.SeverityInfo, models.SeverityWarning}, true, models.RiskMedium},
		{"error", []models.Severity{models.SeverityWarning, models.SeverityError}, false, models.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vs []models.Violation
			for _, s := range tt.severities {
				vs = append(vs, models.Violation{Severity: s, Confidence: 0.8})
			}
			compliant, risk, avg := Summarize(vs)
			if compliant != tt.compliant || risk != tt.risk {
				t.Fatalf("got (%v, %s), want (%v, %s)", compliant, risk, tt.compliant, tt.risk)
			}
			if len(vs) == 0 && avg != 0 {
				t.Fatalf("expected 0 average for no violations, got %v", avg)
			}
			if len(vs) > 0 && math.Abs(avg-0.8) > 1e-9 {
				t.Fatalf("expected 0.8 average, got %v", avg)
			}
		})
	}
}
