package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/assistant"
	"tablewise/internal/convo"
	"tablewise/internal/planner"
)

const clarifySystemPrompt = `The user asked a question about restaurant sales
that cannot be answered yet because a detail is missing, most often the date
range, the metric, or which menu items to include.
Ask ONE short clarifying question. Respond with only the question.`

// fallbackClarification is served when the model cannot produce a question.
// The turn still ends Incomplete and the user can answer or move on.
const fallbackClarification = "Could you give me a bit more detail, for example which date range you mean?"

// ClarifyHandler produces the clarification question for an under-specified
// request. The orchestrator records the question text as the turn's pending
// clarification.
type ClarifyHandler struct {
	deps Deps
}

// NewClarifyHandler creates the ask_clarification handler.
func NewClarifyHandler(deps Deps) *ClarifyHandler {
	return &ClarifyHandler{deps: deps}
}

// Action implements assistant.Handler.
func (h *ClarifyHandler) Action() planner.Action {
	return planner.ActionAskClarification
}

// Handle asks the model for a clarifying question, cached per normalized
// request text. Model failure degrades to a canned question rather than an
// error part, so the turn still reaches the Incomplete state it needs.
func (h *ClarifyHandler) Handle(ctx context.Context, req *assistant.HandlerRequest) convo.ResponsePart {
	question, err := h.deps.Cache.GetOrCall(ctx, "clarify_question",
		map[string]string{"text": req.EffectiveText},
		func(callCtx context.Context) (string, error) {
			return h.deps.LLM.CompleteWithSystem(callCtx, clarifySystemPrompt, req.EffectiveText)
		})
	if err != nil {
		h.deps.logger().Warn("clarification generation failed, using fallback",
			zap.String("turn_id", req.TurnID),
			zap.Error(err))
		return convo.TextPart(fallbackClarification)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		question = fallbackClarification
	}
	return convo.TextPart(question)
}
