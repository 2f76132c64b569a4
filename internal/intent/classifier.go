// Package intent classifies what a turn is asking for. Classification is a
// cached model call; when the model fails or returns something unusable,
// the turn degrades to general conversation instead of failing.
package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/cache"
	"tablewise/internal/llm"
)

// Intent labels. These are the keys of the planner's default-sequence
// table; anything else falls back to general conversation.
const (
	IntentAggregateQuery      = "aggregate_query"
	IntentChartRequest        = "chart_request"
	IntentSummaryRequest      = "summary_request"
	IntentNeedsClarification  = "needs_clarification"
	IntentGeneralConversation = "general_conversation"
)

// Classification is the result of classifying one turn.
type Classification struct {
	// Intent is the coarse label for the turn.
	Intent string `json:"intent"`

	// Actions optionally carries an explicit ordered action sequence
	// suggested by the model. The planner validates it against the
	// vocabulary.
	Actions []string `json:"actions,omitempty"`
}

const classifySystemPrompt = `You classify questions asked about restaurant sales data.
Respond with ONLY a JSON object: {"intent": "<label>", "actions": ["..."]}.
Labels: aggregate_query (a concrete data question), chart_request (asks for a
chart or visualization), summary_request (asks for a written summary of data),
needs_clarification (the question is missing a required detail such as a date
range), general_conversation (anything else).
The "actions" list is optional; include it only when a non-default execution
order is required.`

// Classifier wraps the model call with the response cache.
type Classifier struct {
	llm    llm.Client
	cache  *cache.ResponseCache
	logger *zap.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(client llm.Client, responseCache *cache.ResponseCache, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{llm: client, cache: responseCache, logger: logger}
}

// Classify returns the classification for the effective text. Identical
// normalized prompts hit the cache and never re-invoke the model.
func (c *Classifier) Classify(ctx context.Context, effectiveText string) Classification {
	raw, err := c.cache.GetOrCall(ctx, "intent_classify",
		map[string]string{"text": effectiveText},
		func(callCtx context.Context) (string, error) {
			return c.llm.CompleteWithSystem(callCtx, classifySystemPrompt, effectiveText)
		})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to general conversation",
			zap.Error(err))
		return Classification{Intent: IntentGeneralConversation}
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		c.logger.Warn("unparseable classification, defaulting to general conversation",
			zap.String("raw", raw), zap.Error(err))
		return Classification{Intent: IntentGeneralConversation}
	}
	return parsed
}

// parseClassification extracts the JSON object from a model response that
// may wrap it in prose or a code fence.
func parseClassification(raw string) (Classification, error) {
	var c Classification
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &c); err != nil {
		return Classification{}, err
	}
	c.Intent = strings.TrimSpace(strings.ToLower(c.Intent))
	return c, nil
}

// ExtractJSON returns the first top-level JSON object in s, tolerating
// code fences and surrounding prose. Returns s unchanged when no braces
// are found so the caller surfaces a parse error with the original text.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
