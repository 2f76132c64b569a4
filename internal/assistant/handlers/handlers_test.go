package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tablewise/internal/assistant"
	"tablewise/internal/cache"
	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/llm"
	"tablewise/internal/planner"
)

// recordingSink captures error records in memory.
type recordingSink struct {
	mu      sync.Mutex
	records []interactionlog.ErrorRecord
}

func (s *recordingSink) LogError(rec interactionlog.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) all() []interactionlog.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interactionlog.ErrorRecord(nil), s.records...)
}

func testDeps(mock *llm.MockClient, sink *recordingSink) Deps {
	return Deps{
		LLM:         mock,
		Cache:       cache.New(cache.Config{Capacity: 64, Seed: 1}, nil),
		Errors:      sink,
		MaxVariants: 2,
	}
}

func request(text string) *assistant.HandlerRequest {
	return &assistant.HandlerRequest{
		TurnID:        "turn-1",
		EffectiveText: text,
		Ctx:           convo.NewContext(text),
	}
}

func TestChartHandlerBuildsConfig(t *testing.T) {
	sink := &recordingSink{}
	h := NewChartHandler(testDeps(llm.NewMockClient(), sink))

	req := request("chart my sales by item")
	req.Ctx.LastTable = &convo.Table{
		Columns: []string{"name", "sold"},
		Rows:    [][]string{{"Burger", "12"}, {"Fries", "7"}},
	}

	part := h.Handle(context.Background(), req)
	if part.Type != convo.PartChart {
		t.Fatalf("part type = %s, want chart", part.Type)
	}
	if part.Chart.XLabel != "name" || part.Chart.YLabel != "sold" {
		t.Errorf("axis labels = %q/%q", part.Chart.XLabel, part.Chart.YLabel)
	}
	if len(part.Chart.Y) != 2 || part.Chart.Y[0] != 12 {
		t.Errorf("values = %v", part.Chart.Y)
	}
	if req.Ctx.LastChart == nil {
		t.Error("chart not recorded on the turn context")
	}
}

func TestChartHandlerSkipsNonNumericColumns(t *testing.T) {
	sink := &recordingSink{}
	h := NewChartHandler(testDeps(llm.NewMockClient(), sink))

	req := request("chart it")
	req.Ctx.LastTable = &convo.Table{
		Columns: []string{"name", "category", "sold"},
		Rows:    [][]string{{"Burger", "mains", "12"}, {"Fries", "sides", "7"}},
	}

	part := h.Handle(context.Background(), req)
	if part.Type != convo.PartChart {
		t.Fatalf("part type = %s, want chart", part.Type)
	}
	if part.Chart.YLabel != "sold" {
		t.Errorf("picked column %q, want sold", part.Chart.YLabel)
	}
}

func TestChartHandlerNoTable(t *testing.T) {
	sink := &recordingSink{}
	h := NewChartHandler(testDeps(llm.NewMockClient(), sink))

	part := h.Handle(context.Background(), request("chart it"))
	if part.Type != convo.PartText {
		t.Fatalf("part type = %s, want explanatory text", part.Type)
	}
	records := sink.all()
	if len(records) != 1 || records[0].Kind != "chart_input" {
		t.Errorf("error records = %+v", records)
	}
}

func TestSummarizeHandlerUsesLastTable(t *testing.T) {
	sink := &recordingSink{}
	mock := llm.NewMockClient().Respond("Burger", "Burgers carried the week.")
	h := NewSummarizeHandler(testDeps(mock, sink))

	req := request("summarize sales")
	req.Ctx.LastTable = &convo.Table{
		Columns: []string{"name", "sold"},
		Rows:    [][]string{{"Burger", "12"}},
	}

	part := h.Handle(context.Background(), req)
	if part.Type != convo.PartText || part.Text != "Burgers carried the week." {
		t.Errorf("part = %+v", part)
	}
}

func TestSummarizeHandlerNoTable(t *testing.T) {
	sink := &recordingSink{}
	h := NewSummarizeHandler(testDeps(llm.NewMockClient(), sink))

	part := h.Handle(context.Background(), request("summarize"))
	if part.Type != convo.PartText {
		t.Fatalf("part type = %s", part.Type)
	}
	records := sink.all()
	if len(records) != 1 || records[0].Kind != "summarize_input" {
		t.Errorf("error records = %+v", records)
	}
}

func TestClarifyHandlerFallsBackOnModelFailure(t *testing.T) {
	sink := &recordingSink{}
	mock := llm.NewMockClient().Fail(errors.New("down"))
	h := NewClarifyHandler(testDeps(mock, sink))

	part := h.Handle(context.Background(), request("show me sales"))
	if part.Type != convo.PartText || part.Text == "" {
		t.Fatalf("fallback question missing: %+v", part)
	}
	if !strings.Contains(part.Text, "date range") {
		t.Errorf("fallback text = %q", part.Text)
	}
	if len(sink.all()) != 0 {
		t.Error("clarification fallback must not produce an error record")
	}
}

func TestChatHandlerDiversityBound(t *testing.T) {
	sink := &recordingSink{}
	mock := llm.NewMockClient()
	mock.Default = "hello there"
	h := NewChatHandler(testDeps(mock, sink))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		part := h.Handle(ctx, request("hi"))
		if part.Type != convo.PartText {
			t.Fatalf("part type = %s", part.Type)
		}
	}
	if got := mock.Calls(); got != 2 {
		t.Errorf("model calls = %d, want MaxVariants of 2", got)
	}
}

func TestChatHandlerFailureRecorded(t *testing.T) {
	sink := &recordingSink{}
	mock := llm.NewMockClient().Fail(errors.New("down"))
	h := NewChatHandler(testDeps(mock, sink))

	part := h.Handle(context.Background(), request("hi"))
	if part.Type != convo.PartText {
		t.Fatalf("part type = %s", part.Type)
	}
	records := sink.all()
	if len(records) != 1 || records[0].Kind != "chat_generation" {
		t.Errorf("error records = %+v", records)
	}
}

func TestAllCoversVocabulary(t *testing.T) {
	deps := testDeps(llm.NewMockClient(), &recordingSink{})
	seen := map[planner.Action]bool{}
	for _, h := range All(deps) {
		seen[h.Action()] = true
	}
	for _, a := range planner.Vocabulary() {
		if !seen[a] {
			t.Errorf("no handler for action %q", a)
		}
	}
}
