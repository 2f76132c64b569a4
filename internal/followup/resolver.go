// Package followup decides whether an incoming message stands on its own,
// continues the previous question, or answers a pending clarification, and
// rewrites it into a standalone query when it does not. Model judgments are
// cached; a failing model degrades to treating the message as a fresh,
// self-contained question.
package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tablewise/internal/cache"
	"tablewise/internal/convo"
	"tablewise/internal/intent"
	"tablewise/internal/llm"
)

// =============================================================================
// PROMPTS
// =============================================================================

const detectSystemPrompt = `You judge whether a message is a follow-up fragment
that depends on the previous question for its meaning (pronouns, "and X?",
missing subject) rather than a self-contained question.
Answer with exactly one word: yes or no.`

const rewriteSystemPrompt = `You rewrite a follow-up fragment into one
grammatically complete, standalone question by substituting the missing
context from the previous question. Respond with ONLY the rewritten question.`

const replySystemPrompt = `A user was asked a clarification question about an
incomplete data question. Decide whether their new message answers that
clarification. Respond with ONLY a JSON object:
{"is_reply": true|false, "merged": "<the original question merged with the
answer into one standalone question, when is_reply is true>"}`

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver performs follow-up detection and rewriting.
type Resolver struct {
	llm    llm.Client
	cache  *cache.ResponseCache
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(client llm.Client, responseCache *cache.ResponseCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{llm: client, cache: responseCache, logger: logger}
}

// IsFollowUp reports whether currentText is a fragment that needs the
// conversation history to make sense. A model failure means "no": the
// message is processed as a fresh query.
func (r *Resolver) IsFollowUp(ctx context.Context, currentText string, history []convo.Message) bool {
	previous := convo.LastUserQuestion(history)
	if previous == "" {
		return false
	}

	raw, err := r.cache.GetOrCall(ctx, "followup_detect",
		map[string]string{"text": currentText, "previous": previous},
		func(callCtx context.Context) (string, error) {
			prompt := fmt.Sprintf("Previous question: %s\nNew message: %s", previous, currentText)
			return r.llm.CompleteWithSystem(callCtx, detectSystemPrompt, prompt)
		})
	if err != nil {
		r.logger.Warn("follow-up detection failed, treating as fresh query", zap.Error(err))
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "yes")
}

// RewriteWithContext produces a standalone question from a fragment and the
// previous question it leans on.
func (r *Resolver) RewriteWithContext(ctx context.Context, currentText, previousQuestion string) (string, error) {
	rewritten, err := r.cache.GetOrCall(ctx, "followup_rewrite",
		map[string]string{"text": currentText, "previous": previousQuestion},
		func(callCtx context.Context) (string, error) {
			prompt := fmt.Sprintf("Previous question: %s\nFollow-up: %s", previousQuestion, currentText)
			return r.llm.CompleteWithSystem(callCtx, rewriteSystemPrompt, prompt)
		})
	if err != nil {
		return "", fmt.Errorf("follow-up rewrite failed: %w", err)
	}
	return strings.TrimSpace(rewritten), nil
}

// ResolveFollowUp returns the effective text for a message: the rewritten
// standalone question when it is a follow-up, the message unchanged
// otherwise. Pure with respect to (currentText, history): repeated calls
// yield the same output, with the cache guaranteeing the model is not
// re-consulted.
func (r *Resolver) ResolveFollowUp(ctx context.Context, currentText string, history []convo.Message) string {
	if !r.IsFollowUp(ctx, currentText, history) {
		return currentText
	}
	previous := convo.LastUserQuestion(history)
	rewritten, err := r.RewriteWithContext(ctx, currentText, previous)
	if err != nil || rewritten == "" {
		r.logger.Warn("rewrite unavailable, using original text", zap.Error(err))
		return currentText
	}
	return rewritten
}

// replyResolution is the model's decision payload.
type replyResolution struct {
	IsReply bool   `json:"is_reply"`
	Merged  string `json:"merged"`
}

// ResolveReplyToClarification decides in a single model call whether the
// message answers the outstanding clarification question and, if so, merges
// it with the original incomplete question into one standalone query. When
// the message is not a reply (or the model fails), it returns
// (false, currentText) and the caller processes a brand-new turn.
func (r *Resolver) ResolveReplyToClarification(ctx context.Context, currentText, pendingQuestion, previousQuestion string) (bool, string) {
	raw, err := r.cache.GetOrCall(ctx, "clarify_resolve",
		map[string]string{
			"text":     currentText,
			"pending":  pendingQuestion,
			"previous": previousQuestion,
		},
		func(callCtx context.Context) (string, error) {
			prompt := fmt.Sprintf(
				"Original question: %s\nClarification asked: %s\nUser's new message: %s",
				previousQuestion, pendingQuestion, currentText)
			return r.llm.CompleteWithSystem(callCtx, replySystemPrompt, prompt)
		})
	if err != nil {
		r.logger.Warn("clarification-reply resolution failed, treating as new query", zap.Error(err))
		return false, currentText
	}

	var res replyResolution
	if err := json.Unmarshal([]byte(intent.ExtractJSON(raw)), &res); err != nil {
		r.logger.Warn("unparseable clarification resolution, treating as new query",
			zap.String("raw", raw), zap.Error(err))
		return false, currentText
	}
	if !res.IsReply || strings.TrimSpace(res.Merged) == "" {
		return false, currentText
	}
	return true, strings.TrimSpace(res.Merged)
}
