package intent

import (
	"context"
	"errors"
	"testing"

	"tablewise/internal/cache"
	"tablewise/internal/llm"
)

func newTestClassifier(mock *llm.MockClient) *Classifier {
	return NewClassifier(mock, cache.New(cache.Config{Capacity: 32}, nil), nil)
}

func TestClassifyParsesIntent(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("top sellers", `{"intent": "aggregate_query"}`)
	c := newTestClassifier(mock)

	got := c.Classify(context.Background(), "what were my top sellers?")
	if got.Intent != IntentAggregateQuery {
		t.Errorf("intent = %q, want aggregate_query", got.Intent)
	}
}

func TestClassifyTakesSuggestedActions(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("chart", `{"intent": "chart_request", "actions": ["run_query", "generate_chart"]}`)
	c := newTestClassifier(mock)

	got := c.Classify(context.Background(), "chart my sales")
	if got.Intent != IntentChartRequest {
		t.Errorf("intent = %q", got.Intent)
	}
	if len(got.Actions) != 2 || got.Actions[0] != "run_query" {
		t.Errorf("actions = %v", got.Actions)
	}
}

func TestClassifyToleratesFencedJSON(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("summarize", "Sure, here you go:\n```json\n{\"intent\": \"Summary_Request\"}\n```")
	c := newTestClassifier(mock)

	got := c.Classify(context.Background(), "summarize last week")
	if got.Intent != IntentSummaryRequest {
		t.Errorf("intent = %q, want summary_request", got.Intent)
	}
}

func TestClassifyModelFailureDegrades(t *testing.T) {
	mock := llm.NewMockClient().Fail(errors.New("model down"))
	c := newTestClassifier(mock)

	got := c.Classify(context.Background(), "anything")
	if got.Intent != IntentGeneralConversation {
		t.Errorf("intent = %q, want general_conversation fallback", got.Intent)
	}
}

func TestClassifyGarbageDegrades(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Default = "I am not JSON at all"
	c := newTestClassifier(mock)

	got := c.Classify(context.Background(), "anything")
	if got.Intent != IntentGeneralConversation {
		t.Errorf("intent = %q, want general_conversation fallback", got.Intent)
	}
}

func TestClassifyCachesByNormalizedText(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("top sellers", `{"intent": "aggregate_query"}`)
	c := newTestClassifier(mock)
	ctx := context.Background()

	c.Classify(ctx, "Top Sellers last week")
	c.Classify(ctx, "top   sellers LAST week")
	if got := mock.Calls(); got != 1 {
		t.Errorf("model calls = %d, want 1 (second lookup must hit cache)", got)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"prefix {\"a\": {\"b\": 2}} suffix", `{"a": {"b": 2}}`},
		{`{"s": "brace } in string"}`, `{"s": "brace } in string"}`},
		{"no braces here", "no braces here"},
		{`{"unterminated": true`, `{"unterminated": true`},
	}
	for _, tc := range cases {
		if got := ExtractJSON(tc.in); got != tc.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
