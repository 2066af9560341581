package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"offerguard-backend/llm"
	"offerguard-backend/models"
)

func TestParseJudgeResponse(t *testing.T) {
	laws := []models.RetrievalResult{lawFor(models.TopicNonCompete, "Cal. Bus. & Prof. Code § 16600")}
	raw := `[
		{"topic":"non_compete","severity":"ERROR","confidence":1.7,"explanation":"Void non-compete.","citation":"Cal. Bus. & Prof. Code § 16600","evidence_text":"you agree to a non-compete","reasoning":"ignored"},
		{"topic":"salary-history","severity":"warning","explanation":"missing confidence"},
		{"topic":"drug-screening","severity":"fatal","confidence":0.5,"explanation":"bad severity"},
		{"topic":"background-check","severity":"warning","confidence":"high","explanation":"bad type"},
		{"topic":"at-will","severity":"info","confidence":-0.3,"explanation":"fine","citation":null}
	]`

	got, err := ParseJudgeResponse(raw, laws)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 valid entries, got %d: %+v", len(got), got)
	}

	nc := got[0]
	if nc.Topic != models.TopicNonCompete || nc.Severity != models.SeverityError || nc.Confidence != 1 {
		t.Fatalf("unexpected first entry %+v", nc)
	}
	if nc.SourceLayer != models.LayerLLM {
		t.Fatalf("expected llm layer, got %s", nc.SourceLayer)
	}

	aw := got[1]
	if aw.Confidence != 0 || aw.Citation != nil {
		t.Fatalf("unexpected second entry %+v", aw)
	}
}

func TestParseJudgeResponseRepair(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"code fence", "```json\n[{\"topic\":\"non-compete\",\"severity\":\"error\",\"confidence\":0.8,\"explanation\":\"x\"}]\n```"},
		{"wrapper object", `{"violations":[{"topic":"non-compete","severity":"error","confidence":0.8,"explanation":"x"}]}`},
		{"trailing comma", `[{"topic":"non-compete","severity":"error","confidence":0.8,"explanation":"x",},]`},
		{"surrounding prose", "Here are the findings:\n[{\"topic\":\"non-compete\",\"severity\":\"error\",\"confidence\":0.8,\"explanation\":\"x\"}]\nLet me know."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJudgeResponse(tt.raw, nil)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) != 1 || got[0].Topic != models.TopicNonCompete {
				t.Fatalf("unexpected result %+v", got)
			}
		})
	}
}

func TestParseJudgeResponseMalformed(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", `{"topic":"non-compete"}`, "[{unclosed"} {
		if _, err := ParseJudgeResponse(raw, nil); !errors.Is(err, ErrJudgeMalformedResponse) {
			t.Errorf("expected ErrJudgeMalformedResponse for %q, got %v", raw, err)
		}
	}
}

func TestParseJudgeResponseEmptyArray(t *testing.T) {
	got, err := ParseJudgeResponse("[]", nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestParseJudgeResponseDuplicateTopics(t *testing.T) {
	raw := `[
		{"topic":"noncompete","severity":"warning","confidence":0.6,"explanation":"low"},
		{"topic":"non-compete","severity":"error","confidence":0.9,"explanation":"high"},
		{"topic":"Non Compete","severity":"error","confidence":0.7,"explanation":"mid"}
	]`
	got, err := ParseJudgeResponse(raw, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Confidence != 0.9 || got[0].Explanation != "high" {
		t.Fatalf("expected the highest-confidence entry, got %+v", got)
	}
}

func TestParseJudgeResponseGroundsCitations(t *testing.T) {
	laws := []models.RetrievalResult{
		lawFor(models.TopicNonCompete, "Cal. Bus. & Prof. Code § 16600"),
		lawFor(models.TopicSalaryHistory, "Cal. Lab. Code § 432.3"),
	}
	raw := `[
		{"topic":"non-compete","severity":"error","confidence":0.9,"explanation":"x","citation":"Cal. Civ. Code § 9999"},
		{"topic":"salary-history","severity":"error","confidence":0.9,"explanation":"x"},
		{"topic":"drug-screening","severity":"error","confidence":0.9,"explanation":"x","citation":"Some Other Law"},
		{"topic":"choice-of-law","severity":"error","confidence":0.9,"explanation":"x","citation":"cal. lab. code  § 432.3"}
	]`
	got, err := ParseJudgeResponse(raw, laws)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{
		models.TopicNonCompete:    "Cal. Bus. & Prof. Code § 16600",
		models.TopicSalaryHistory: "Cal. Lab. Code § 432.3",
		models.TopicDrugScreening: "Some Other Law",
		models.TopicChoiceOfLaw:   "Cal. Lab. Code § 432.3",
	}
	for _, c := range got {
		if models.StringValue(c.Citation) != want[c.Topic] {
			t.Errorf("%s: citation %q, want %q", c.Topic, models.StringValue(c.Citation), want[c.Topic])
		}
	}
}

const validJudgeResponse = `[{"topic":"non-compete","severity":"error","confidence":0.8,"explanation":"Void in California.","citation":"Cal. Bus. & Prof. Code § 16600","evidence_text":"non-compete covenant"}]`

func TestJudgeRetriesWithShorterPrompt(t *testing.T) {
	client := &fakeClient{respond: func(ctx context.Context, call int, req llm.Request) (string, error) {
		if call == 1 {
			return "", errors.New("connection reset")
		}
		return validJudgeResponse, nil
	}}
	laws := []models.RetrievalResult{
		lawFor(models.TopicNonCompete, "A"),
		lawFor(models.TopicSalaryHistory, "B"),
		lawFor(models.TopicDrugScreening, "C"),
		lawFor(models.TopicChoiceOfLaw, "D"),
	}

	res := NewLLMJudge(client, DefaultJudgeConfig()).Detect(context.Background(), DetectionInput{
		DocumentText: caNonCompeteOffer,
		Jurisdiction: "CA",
		Laws:         laws,
	})
	if !res.Available || res.Err != nil {
		t.Fatalf("expected success on retry, got %+v", res)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", client.calls)
	}

	first, second := client.requests[0], client.requests[1]
	if len(second.Prompt) >= len(first.Prompt) {
		t.Fatalf("retry prompt should be shorter: %d >= %d", len(second.Prompt), len(first.Prompt))
	}
	if strings.Contains(second.Prompt, "Text:") {
		t.Fatal("retry prompt should omit statute full text")
	}
	if strings.Contains(second.Prompt, "[choice-of-law]") {
		t.Fatal("retry prompt should keep only the top laws")
	}
	if first.Temperature != 0.1 || !first.JSON {
		t.Fatalf("unexpected request settings %+v", first)
	}
}

func TestJudgeTimeout(t *testing.T) {
	client := &fakeClient{respond: func(ctx context.Context, call int, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := DefaultJudgeConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.RetryTimeout = 20 * time.Millisecond

	res := NewLLMJudge(client, cfg).Detect(context.Background(), DetectionInput{DocumentText: "x", Jurisdiction: "CA"})
	if res.Available {
		t.Fatal("expected judge to be unavailable")
	}
	if !errors.Is(res.Err, ErrJudgeTimeout) {
		t.Fatalf("expected ErrJudgeTimeout, got %v", res.Err)
	}
	if client.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", client.calls)
	}
	if res.Candidates == nil || len(res.Candidates) != 0 {
		t.Fatalf("expected empty candidates, got %+v", res.Candidates)
	}
}

func TestJudgeStopsOnCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{respond: func(c context.Context, call int, req llm.Request) (string, error) {
		cancel()
		return "", c.Err()
	}}

	res := NewLLMJudge(client, DefaultJudgeConfig()).Detect(ctx, DetectionInput{DocumentText: "x", Jurisdiction: "CA"})
	if res.Available {
		t.Fatal("expected judge to be unavailable")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", client.calls)
	}
}

func TestJudgeMalformedResponse(t *testing.T) {
	client := staticClient("Sorry, I can't produce JSON today.")
	res := NewLLMJudge(client, DefaultJudgeConfig()).Detect(context.Background(), DetectionInput{DocumentText: "x", Jurisdiction: "CA"})
	if res.Available || !errors.Is(res.Err, ErrJudgeMalformedResponse) {
		t.Fatalf("expected malformed response, got %+v", res)
	}
	if client.calls != 1 {
		t.Fatalf("malformed output should not be retried, got %d calls", client.calls)
	}
}

func TestJudgeWithoutClient(t *testing.T) {
	res := NewLLMJudge(nil, JudgeConfig{}).Detect(context.Background(), DetectionInput{DocumentText: "x", Jurisdiction: "CA"})
	if res.Available || !errors.Is(res.Err, ErrJudgeUnavailable) {
		t.Fatalf("expected ErrJudgeUnavailable, got %+v", res)
	}
}

func TestJudgePromptWithoutLaws(t *testing.T) {
	prompt := buildJudgePrompt("CA", "offer text", nil, promptOptions{maxDocumentChars: 100})
	if !strings.Contains(prompt, "No statutes were retrieved") {
		t.Fatal("expected the conservative note when no laws were retrieved")
	}
	if !strings.Contains(prompt, "JURISDICTION: CA") || !strings.Contains(prompt, "offer text") {
		t.Fatal("prompt missing jurisdiction or document")
	}
	for _, key := range []string{`"topic"`, `"severity"`, `"confidence"`, `"explanation"`, `"citation"`, `"evidence_text"`} {
		if !strings.Contains(prompt, key) {
			t.Errorf("prompt schema missing %s", key)
		}
	}
}

func TestClauseWindow(t *testing.T) {
	filler := strings.Repeat("Welcome to the team and congratulations on your new role. ", 20)
	doc := filler + "\n\nYou agree to a non-compete for two years.\n\n" + filler + "\n\nPlease share your salary history."
	laws := []models.RetrievalResult{lawFor(models.TopicNonCompete, "A"), lawFor(models.TopicSalaryHistory, "B")}

	got := clauseWindow(doc, laws, 200)
	if strings.Contains(got, "Welcome") {
		t.Fatalf("expected filler paragraphs to be dropped, got %q", got)
	}
	if !strings.Contains(got, "non-compete") || !strings.Contains(got, "salary history") {
		t.Fatalf("expected relevant paragraphs in order, got %q", got)
	}
	if strings.Index(got, "non-compete") > strings.Index(got, "salary history") {
		t.Fatal("paragraphs should keep document order")
	}

	if short := clauseWindow("short doc", laws, 200); short != "short doc" {
		t.Fatalf("short documents should be unchanged, got %q", short)
	}
}
