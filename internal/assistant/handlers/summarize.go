package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/assistant"
	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/planner"
)

const summarizeSystemPrompt = `You summarize restaurant sales query results
for a restaurant owner. Two or three sentences, plain language, mention the
standout numbers. No markdown.`

// SummarizeHandler turns the table from the preceding run_query action into
// a short prose summary. Summaries are diversity-cached so a repeated
// question does not always read identically.
type SummarizeHandler struct {
	deps Deps
}

// NewSummarizeHandler creates the summarize handler.
func NewSummarizeHandler(deps Deps) *SummarizeHandler {
	return &SummarizeHandler{deps: deps}
}

// Action implements assistant.Handler.
func (h *SummarizeHandler) Action() planner.Action {
	return planner.ActionSummarize
}

// Handle summarizes the last table. A missing table or a model failure is
// absorbed into an explanatory part plus an error record.
func (h *SummarizeHandler) Handle(ctx context.Context, req *assistant.HandlerRequest) convo.ResponsePart {
	table := req.Ctx.LastTable
	if table == nil {
		return h.fail(req, "summarize_input",
			fmt.Errorf("summarize requested but no table result is available"))
	}

	prompt := fmt.Sprintf("Question: %s\n\nResult:\n%s",
		req.EffectiveText, renderTable(table))

	text, err := h.deps.Cache.GetOrCallDiversity(ctx, "summarize",
		map[string]string{"text": req.EffectiveText, "table": renderTable(table)},
		func(callCtx context.Context) (string, error) {
			return h.deps.LLM.CompleteWithSystem(callCtx, summarizeSystemPrompt, prompt)
		}, h.deps.maxVariants())
	if err != nil {
		return h.fail(req, "summarization", err)
	}

	h.deps.logger().Debug("summary produced",
		zap.String("turn_id", req.TurnID))
	return convo.TextPart(strings.TrimSpace(text))
}

func (h *SummarizeHandler) fail(req *assistant.HandlerRequest, kind string, err error) convo.ResponsePart {
	h.deps.logger().Warn("summarize handler failed",
		zap.String("turn_id", req.TurnID),
		zap.String("kind", kind),
		zap.Error(err))
	if h.deps.Errors != nil {
		h.deps.Errors.LogError(interactionlog.ErrorRecord{
			TurnID:        req.TurnID,
			Action:        string(planner.ActionSummarize),
			EffectiveText: req.EffectiveText,
			SQLText:       req.Ctx.LastQuery,
			Kind:          kind,
			Message:       err.Error(),
		})
	}
	return convo.TextPart("I couldn't summarize those results right now. " +
		"The table above still has the full numbers.")
}

// renderTable flattens a table into pipe-separated text for prompts.
func renderTable(t *convo.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	for _, row := range t.Rows {
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}
