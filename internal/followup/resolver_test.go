package followup

import (
	"context"
	"errors"
	"testing"

	"tablewise/internal/cache"
	"tablewise/internal/convo"
	"tablewise/internal/llm"
)

func newTestResolver(mock *llm.MockClient) *Resolver {
	return NewResolver(mock, cache.New(cache.Config{Capacity: 64}, nil), nil)
}

func history(entries ...string) []convo.Message {
	msgs := make([]convo.Message, 0, len(entries))
	for i, content := range entries {
		role := convo.RoleUser
		if i%2 == 1 {
			role = convo.RoleAssistant
		}
		msgs = append(msgs, convo.Message{Role: role, Content: content})
	}
	return msgs
}

func TestIsFollowUpNoHistory(t *testing.T) {
	mock := llm.NewMockClient()
	r := newTestResolver(mock)

	if r.IsFollowUp(context.Background(), "and for last month?", nil) {
		t.Error("message with no history treated as follow-up")
	}
	if mock.Calls() != 0 {
		t.Error("model consulted despite empty history")
	}
}

func TestResolveFollowUpRewrites(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("New message: and for last month?", "yes").
		Respond("Follow-up: and for last month?", "What were my total sales for last month?")
	r := newTestResolver(mock)

	h := history("What were my total sales for last week?", "Your total was $5,200.")
	got := r.ResolveFollowUp(context.Background(), "and for last month?", h)
	if got != "What were my total sales for last month?" {
		t.Errorf("effective text = %q", got)
	}
}

func TestResolveFollowUpStandalonePassesThrough(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("New message:", "no")
	r := newTestResolver(mock)

	h := history("What were my total sales?", "Here you go.")
	got := r.ResolveFollowUp(context.Background(), "How many orders came in yesterday?", h)
	if got != "How many orders came in yesterday?" {
		t.Errorf("standalone question rewritten to %q", got)
	}
}

func TestResolveFollowUpModelFailure(t *testing.T) {
	mock := llm.NewMockClient().Fail(errors.New("timeout"))
	r := newTestResolver(mock)

	h := history("What were my sales?", "$100.")
	got := r.ResolveFollowUp(context.Background(), "and yesterday?", h)
	if got != "and yesterday?" {
		t.Errorf("failure did not degrade to original text: %q", got)
	}
}

func TestResolveFollowUpCached(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("New message:", "yes").
		Respond("Follow-up:", "rewritten question")
	r := newTestResolver(mock)
	ctx := context.Background()

	h := history("What were my sales?", "$100.")
	first := r.ResolveFollowUp(ctx, "and yesterday?", h)
	callsAfterFirst := mock.Calls()
	second := r.ResolveFollowUp(ctx, "and yesterday?", h)

	if first != second {
		t.Errorf("resolution not deterministic: %q vs %q", first, second)
	}
	if mock.Calls() != callsAfterFirst {
		t.Errorf("repeat resolution re-consulted the model: %d -> %d calls",
			callsAfterFirst, mock.Calls())
	}
}

func TestResolveReplyToClarification(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("User's new message: last week",
			`{"is_reply": true, "merged": "How did sales do last week?"}`)
	r := newTestResolver(mock)

	isReply, merged := r.ResolveReplyToClarification(context.Background(),
		"last week", "Which date range?", "How did sales do?")
	if !isReply {
		t.Fatal("reply not recognized")
	}
	if merged != "How did sales do last week?" {
		t.Errorf("merged = %q", merged)
	}
}

func TestResolveReplyNotAReply(t *testing.T) {
	mock := llm.NewMockClient().
		Respond("User's new message:",
			`{"is_reply": false, "merged": ""}`)
	r := newTestResolver(mock)

	isReply, text := r.ResolveReplyToClarification(context.Background(),
		"what is my best item?", "Which date range?", "How did sales do?")
	if isReply {
		t.Error("new question misread as reply")
	}
	if text != "what is my best item?" {
		t.Errorf("text = %q", text)
	}
}

func TestResolveReplyModelFailure(t *testing.T) {
	mock := llm.NewMockClient().Fail(errors.New("down"))
	r := newTestResolver(mock)

	isReply, text := r.ResolveReplyToClarification(context.Background(),
		"last week", "Which date range?", "How did sales do?")
	if isReply {
		t.Error("failure must degrade to not-a-reply")
	}
	if text != "last week" {
		t.Errorf("text = %q", text)
	}
}

func TestResolveReplyGarbageJSON(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Default = "definitely not json"
	r := newTestResolver(mock)

	isReply, text := r.ResolveReplyToClarification(context.Background(),
		"last week", "Which date range?", "How did sales do?")
	if isReply || text != "last week" {
		t.Errorf("garbage resolution: isReply=%v text=%q", isReply, text)
	}
}
