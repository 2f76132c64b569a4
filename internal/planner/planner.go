// Package planner maps an intent classification to an ordered list of
// pipeline actions. Planning is pure: identical input always yields
// identical output, and nothing here touches external state.
package planner

import (
	"go.uber.org/zap"

	"tablewise/internal/intent"
)

// =============================================================================
// ACTION VOCABULARY
// =============================================================================

// Action is one unit of pipeline work. The vocabulary is closed: handlers
// are registered per action at startup and unknown identifiers never reach
// execution.
type Action string

const (
	ActionRunQuery            Action = "run_query"
	ActionGenerateChart       Action = "generate_chart"
	ActionSummarize           Action = "summarize"
	ActionAskClarification    Action = "ask_clarification"
	ActionGeneralConversation Action = "general_conversation"
)

// Vocabulary returns all known actions in a stable order.
func Vocabulary() []Action {
	return []Action{
		ActionRunQuery,
		ActionGenerateChart,
		ActionSummarize,
		ActionAskClarification,
		ActionGeneralConversation,
	}
}

// Known reports whether the identifier is part of the action vocabulary.
func Known(a Action) bool {
	switch a {
	case ActionRunQuery, ActionGenerateChart, ActionSummarize,
		ActionAskClarification, ActionGeneralConversation:
		return true
	}
	return false
}

// Strings converts an action sequence for logging and persistence.
func Strings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

// =============================================================================
// PLANNER
// =============================================================================

// defaultSequences maps intent labels to their default action sequence.
var defaultSequences = map[string][]Action{
	intent.IntentAggregateQuery:      {ActionRunQuery},
	intent.IntentChartRequest:        {ActionRunQuery, ActionGenerateChart},
	intent.IntentSummaryRequest:      {ActionRunQuery, ActionSummarize},
	intent.IntentNeedsClarification:  {ActionAskClarification},
	intent.IntentGeneralConversation: {ActionGeneralConversation},
}

// Planner turns classifications into action sequences.
type Planner struct {
	logger *zap.Logger
}

// New creates a planner. A nil logger disables warnings.
func New(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Plan returns the action sequence for a classification. An explicit
// suggested sequence wins, with unknown identifiers dropped (warned, not
// fatal). Otherwise the intent's default sequence applies; unrecognized
// intents fall back to general conversation.
func (p *Planner) Plan(c intent.Classification) []Action {
	if len(c.Actions) > 0 {
		planned := make([]Action, 0, len(c.Actions))
		for _, raw := range c.Actions {
			a := Action(raw)
			if !Known(a) {
				p.logger.Warn("dropping unknown action from suggested sequence",
					zap.String("action", raw),
					zap.String("intent", c.Intent))
				continue
			}
			planned = append(planned, a)
		}
		if len(planned) > 0 {
			return planned
		}
		// Every suggestion was unknown; fall through to defaults.
	}

	if seq, ok := defaultSequences[c.Intent]; ok {
		out := make([]Action, len(seq))
		copy(out, seq)
		return out
	}

	p.logger.Warn("unrecognized intent, falling back to general conversation",
		zap.String("intent", c.Intent))
	return []Action{ActionGeneralConversation}
}
