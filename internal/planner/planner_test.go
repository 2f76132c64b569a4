package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tablewise/internal/intent"
)

func TestPlanExplicitSequenceWins(t *testing.T) {
	p := New(nil)
	got := p.Plan(intent.Classification{
		Intent:  intent.IntentAggregateQuery,
		Actions: []string{"run_query", "summarize"},
	})
	want := []Action{ActionRunQuery, ActionSummarize}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDropsUnknownActions(t *testing.T) {
	p := New(nil)
	got := p.Plan(intent.Classification{
		Intent:  intent.IntentChartRequest,
		Actions: []string{"run_query", "launch_missiles", "generate_chart"},
	})
	want := []Action{ActionRunQuery, ActionGenerateChart}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanAllUnknownFallsBackToDefault(t *testing.T) {
	p := New(nil)
	got := p.Plan(intent.Classification{
		Intent:  intent.IntentSummaryRequest,
		Actions: []string{"teleport", "format_disk"},
	})
	want := []Action{ActionRunQuery, ActionSummarize}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDefaultSequences(t *testing.T) {
	p := New(nil)
	cases := []struct {
		intent string
		want   []Action
	}{
		{intent.IntentAggregateQuery, []Action{ActionRunQuery}},
		{intent.IntentChartRequest, []Action{ActionRunQuery, ActionGenerateChart}},
		{intent.IntentSummaryRequest, []Action{ActionRunQuery, ActionSummarize}},
		{intent.IntentNeedsClarification, []Action{ActionAskClarification}},
		{intent.IntentGeneralConversation, []Action{ActionGeneralConversation}},
	}
	for _, tc := range cases {
		got := p.Plan(intent.Classification{Intent: tc.intent})
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("intent %s mismatch (-want +got):\n%s", tc.intent, diff)
		}
	}
}

func TestPlanUnrecognizedIntent(t *testing.T) {
	p := New(nil)
	got := p.Plan(intent.Classification{Intent: "order_pizza"})
	want := []Action{ActionGeneralConversation}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

// Plan must be a pure function of its input.
func TestPlanDeterministic(t *testing.T) {
	p := New(nil)
	c := intent.Classification{
		Intent:  intent.IntentChartRequest,
		Actions: []string{"run_query", "bogus", "generate_chart"},
	}
	first := p.Plan(c)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, p.Plan(c)); diff != "" {
			t.Fatalf("plan changed between calls (-first +now):\n%s", diff)
		}
	}
}

func TestKnownCoversVocabulary(t *testing.T) {
	for _, a := range Vocabulary() {
		if !Known(a) {
			t.Errorf("vocabulary action %q not known", a)
		}
	}
	if Known(Action("format_disk")) {
		t.Error("unknown action reported as known")
	}
}
