package convo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTurnStartsPending(t *testing.T) {
	turn := NewTurn("conv", "hello")
	if turn.Status != StatusPending {
		t.Errorf("new turn status = %s, want pending", turn.Status)
	}
	if turn.ID == "" {
		t.Error("turn id not assigned")
	}
}

func TestMarkIncompleteThenTerminal(t *testing.T) {
	tracker := NewClarificationTracker(nil)
	turn := NewTurn("conv", "sales for that period")

	if err := tracker.MarkIncomplete(turn, "Which date range?"); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	if turn.Status != StatusIncomplete {
		t.Errorf("status = %s, want incomplete", turn.Status)
	}
	if turn.PendingClarification != "Which date range?" {
		t.Errorf("pending question = %q", turn.PendingClarification)
	}

	// Terminal states reject further marking.
	if err := tracker.MarkIncomplete(turn, "again?"); err == nil {
		t.Error("expected error marking an incomplete turn again")
	}

	done := NewTurn("conv", "ok")
	tracker.Finalize(done)
	if err := tracker.MarkIncomplete(done, "?"); err == nil {
		t.Error("expected error marking a complete turn incomplete")
	}
}

func TestFinalizeOnlyTouchesPending(t *testing.T) {
	tracker := NewClarificationTracker(nil)

	turn := NewTurn("conv", "hello")
	tracker.Finalize(turn)
	if turn.Status != StatusComplete {
		t.Errorf("status = %s, want complete", turn.Status)
	}

	incomplete := NewTurn("conv", "vague")
	if err := tracker.MarkIncomplete(incomplete, "Which range?"); err != nil {
		t.Fatal(err)
	}
	tracker.Finalize(incomplete)
	if incomplete.Status != StatusIncomplete {
		t.Errorf("finalize overwrote incomplete status: %s", incomplete.Status)
	}
}

func TestResolvePendingFlipsOnlyUnanswered(t *testing.T) {
	tracker := NewClarificationTracker(nil)

	prev := NewTurn("conv", "how were sales?")
	if err := tracker.MarkIncomplete(prev, "Which date range?"); err != nil {
		t.Fatal(err)
	}

	// A reply leaves the previous turn Incomplete forever.
	if flipped := tracker.ResolvePending(prev, true); flipped {
		t.Error("reply must not flip previous turn")
	}
	if prev.Status != StatusIncomplete {
		t.Errorf("status after reply = %s, want incomplete", prev.Status)
	}

	// Moving on flips it to Ignored.
	if flipped := tracker.ResolvePending(prev, false); !flipped {
		t.Error("expected flip to ignored")
	}
	if prev.Status != StatusIgnored {
		t.Errorf("status = %s, want ignored", prev.Status)
	}

	// Already-settled turns are left alone.
	if flipped := tracker.ResolvePending(prev, false); flipped {
		t.Error("ignored turn flipped twice")
	}
	if tracker.ResolvePending(nil, false) {
		t.Error("nil previous turn flipped")
	}
	complete := NewTurn("conv", "done")
	tracker.Finalize(complete)
	if tracker.ResolvePending(complete, false) {
		t.Error("complete turn flipped")
	}
}

func TestTerminalStates(t *testing.T) {
	cases := map[TurnStatus]bool{
		StatusPending:    false,
		StatusComplete:   true,
		StatusIncomplete: true,
		StatusIgnored:    true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestLastUserQuestion(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "how were sales?"},
		{Role: RoleAssistant, Content: "Which date range?"},
		{Role: RoleUser, Content: "last week"},
		{Role: RoleAssistant, Content: "here you go"},
	}
	if got := LastUserQuestion(history); got != "last week" {
		t.Errorf("LastUserQuestion = %q", got)
	}
	if got := LastAssistantMessage(history); got != "here you go" {
		t.Errorf("LastAssistantMessage = %q", got)
	}
	if got := LastUserQuestion(nil); got != "" {
		t.Errorf("empty history returned %q", got)
	}
}

func TestResponsePartMarshal(t *testing.T) {
	part := TextPart("hello")
	data, err := json.Marshal(part)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"text","content":"hello"}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}
}

func TestResponseContentSingleVsMulti(t *testing.T) {
	single := &Response{Parts: []ResponsePart{TextPart("hi")}, QueryStatus: QueryComplete}
	data, err := json.Marshal(single)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"multi"`) {
		t.Errorf("single part wrapped in multi: %s", data)
	}

	multi := &Response{
		Parts: []ResponsePart{
			TablePart(&Table{Columns: []string{"item"}, Rows: [][]string{{"burger"}}}),
			TextPart("summary"),
		},
		QueryStatus: QueryComplete,
	}
	data, err = json.Marshal(multi)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type":"multi"`) {
		t.Errorf("multi-part response missing multi wrapper: %s", data)
	}
	if !strings.Contains(string(data), `"query_status":"complete"`) {
		t.Errorf("missing query status: %s", data)
	}
}
