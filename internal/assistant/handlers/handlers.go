// Package handlers implements the action handlers the orchestrator
// dispatches to: query execution, chart synthesis, summarization,
// clarification and general conversation. Handlers absorb their own
// failures: a broken collaborator produces an explanatory response part
// and a structured error record, never a pipeline error.
package handlers

import (
	"go.uber.org/zap"

	"tablewise/internal/analytics"
	"tablewise/internal/assistant"
	"tablewise/internal/cache"
	"tablewise/internal/llm"
)

// Deps bundles the collaborators shared by all handlers.
type Deps struct {
	LLM    llm.Client
	Cache  *cache.ResponseCache
	Store  *analytics.Store
	Errors assistant.ErrorSink
	Logger *zap.Logger

	// MaxVariants bounds diversity-cached conversational calls.
	MaxVariants int
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Deps) maxVariants() int {
	if d.MaxVariants <= 0 {
		return cache.DefaultConfig().MaxVariants
	}
	return d.MaxVariants
}

// All returns one handler per vocabulary action, ready for orchestrator
// registration.
func All(deps Deps) []assistant.Handler {
	return []assistant.Handler{
		NewRunQueryHandler(deps),
		NewChartHandler(deps),
		NewSummarizeHandler(deps),
		NewClarifyHandler(deps),
		NewChatHandler(deps),
	}
}
