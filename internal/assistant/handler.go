package assistant

import (
	"context"

	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/planner"
)

// HandlerRequest carries what one action execution needs.
type HandlerRequest struct {
	TurnID        string
	EffectiveText string

	// Ctx is the per-turn accumulator. Handlers read what earlier actions
	// produced (the last table, the last generated query) and record their
	// own outputs on it.
	Ctx *convo.Context
}

// Handler executes one action. Execution failures are handled inside the
// handler: it reports them to the error sink and returns an explanatory
// part, so a failing collaborator never aborts the pipeline.
type Handler interface {
	// Action returns the identifier this handler serves.
	Action() planner.Action

	// Handle runs the action and returns its response part.
	Handle(ctx context.Context, req *HandlerRequest) convo.ResponsePart
}

// ErrorSink receives structured handler-failure records. Implemented by
// the interaction logger.
type ErrorSink interface {
	LogError(rec interactionlog.ErrorRecord)
}
