package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/assistant"
	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/planner"
)

const chatSystemPrompt = `You are a friendly assistant inside a restaurant
analytics tool. Answer conversationally in one or two sentences. If the user
seems to want numbers, suggest asking a sales question instead.`

// ChatHandler answers small talk and anything the classifier could not map
// to an analytics action. Replies are diversity-cached so a repeated
// greeting does not always get the identical response.
type ChatHandler struct {
	deps Deps
}

// NewChatHandler creates the general_conversation handler.
func NewChatHandler(deps Deps) *ChatHandler {
	return &ChatHandler{deps: deps}
}

// Action implements assistant.Handler.
func (h *ChatHandler) Action() planner.Action {
	return planner.ActionGeneralConversation
}

// Handle produces a conversational reply. Model failure becomes an
// explanatory part plus an error record, keeping the turn alive.
func (h *ChatHandler) Handle(ctx context.Context, req *assistant.HandlerRequest) convo.ResponsePart {
	text, err := h.deps.Cache.GetOrCallDiversity(ctx, "general_chat",
		map[string]string{"text": req.EffectiveText},
		func(callCtx context.Context) (string, error) {
			return h.deps.LLM.CompleteWithSystem(callCtx, chatSystemPrompt, req.EffectiveText)
		}, h.deps.maxVariants())
	if err != nil {
		h.deps.logger().Warn("general_conversation handler failed",
			zap.String("turn_id", req.TurnID),
			zap.Error(err))
		if h.deps.Errors != nil {
			h.deps.Errors.LogError(interactionlog.ErrorRecord{
				TurnID:        req.TurnID,
				Action:        string(planner.ActionGeneralConversation),
				EffectiveText: req.EffectiveText,
				Kind:          "chat_generation",
				Message:       err.Error(),
			})
		}
		return convo.TextPart("I'm having trouble responding right now, " +
			"but I'm still happy to dig into your sales data.")
	}
	return convo.TextPart(strings.TrimSpace(text))
}
