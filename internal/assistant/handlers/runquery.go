package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/analytics"
	"tablewise/internal/assistant"
	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/planner"
)

const sqlSystemPrompt = `You translate a question about restaurant sales into
one SQLite SELECT statement.
%s
Respond with ONLY the SQL statement, no prose, no code fence.`

// RunQueryHandler turns the effective question into SQL and executes it
// against the analytics store.
type RunQueryHandler struct {
	deps Deps
}

// NewRunQueryHandler creates the run_query handler.
func NewRunQueryHandler(deps Deps) *RunQueryHandler {
	return &RunQueryHandler{deps: deps}
}

// Action implements assistant.Handler.
func (h *RunQueryHandler) Action() planner.Action {
	return planner.ActionRunQuery
}

// Handle generates SQL (cached per normalized question), executes it and
// returns the result table. Generation and execution failures both become
// explanatory parts plus error records.
func (h *RunQueryHandler) Handle(ctx context.Context, req *assistant.HandlerRequest) convo.ResponsePart {
	sqlText, err := h.deps.Cache.GetOrCall(ctx, "sql_generate",
		map[string]string{"text": req.EffectiveText},
		func(callCtx context.Context) (string, error) {
			system := fmt.Sprintf(sqlSystemPrompt, analytics.SchemaDescription())
			return h.deps.LLM.CompleteWithSystem(callCtx, system, req.EffectiveText)
		})
	if err != nil {
		return h.fail(req, "", "sql_generation", err)
	}

	sqlText = stripFence(sqlText)
	req.Ctx.LastQuery = sqlText

	table, err := h.deps.Store.Query(ctx, sqlText)
	if err != nil {
		return h.fail(req, sqlText, "query_execution", err)
	}

	h.deps.logger().Debug("query executed",
		zap.String("turn_id", req.TurnID),
		zap.Int("rows", len(table.Rows)))
	return convo.TablePart(table)
}

func (h *RunQueryHandler) fail(req *assistant.HandlerRequest, sqlText, kind string, err error) convo.ResponsePart {
	h.deps.logger().Warn("run_query handler failed",
		zap.String("turn_id", req.TurnID),
		zap.String("kind", kind),
		zap.Error(err))
	if h.deps.Errors != nil {
		h.deps.Errors.LogError(interactionlog.ErrorRecord{
			TurnID:        req.TurnID,
			Action:        string(planner.ActionRunQuery),
			EffectiveText: req.EffectiveText,
			SQLText:       sqlText,
			Kind:          kind,
			Message:       err.Error(),
		})
	}
	return convo.TextPart("I couldn't run that query against the sales data. " +
		"Could you rephrase the question, or narrow it down?")
}

// stripFence removes a surrounding markdown code fence if the model added
// one despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
