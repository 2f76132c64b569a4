// Package assistant composes the conversational pipeline: spell correction,
// follow-up and clarification resolution, intent classification, action
// planning, handler execution over a shared per-turn context, response
// assembly and interaction logging.
package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tablewise/internal/cache"
	"tablewise/internal/convo"
	"tablewise/internal/followup"
	"tablewise/internal/intent"
	"tablewise/internal/interactionlog"
	"tablewise/internal/llm"
	"tablewise/internal/planner"
)

// Request is one user turn to process. History is a read-only snapshot
// owned by the caller; the orchestrator never mutates it and returns a new
// Turn for the caller to append.
type Request struct {
	ConversationID string
	Prompt         string
	History        []convo.Message

	// LastTurnWasClarification is caller-supplied state: true when the
	// assistant's previous message was a clarification question. Kept as a
	// caller responsibility rather than re-derived from history.
	LastTurnWasClarification bool

	// PreviousTurn is the conversation's most recent turn, when the caller
	// tracks turns. Needed so an unanswered clarification can be flipped
	// to Ignored; nil callers rely on PreviousQueryIgnored in the response.
	PreviousTurn *convo.Turn
}

const correctSystemPrompt = `Fix obvious spelling and grammar mistakes in the
user's message. Keep the wording and meaning untouched otherwise. Respond
with ONLY the corrected message.`

// Orchestrator runs the pipeline for one user turn. It holds explicit
// references to its collaborators; the only shared mutable state anywhere
// is the response cache, which guards itself.
type Orchestrator struct {
	llm      llm.Client
	cache    *cache.ResponseCache
	followup *followup.Resolver
	intents  *intent.Classifier
	planner  *planner.Planner
	tracker  *convo.ClarificationTracker
	handlers map[planner.Action]Handler
	log      *interactionlog.Logger
	logger   *zap.Logger
}

// New creates an orchestrator and validates the handler table: every
// action in the vocabulary must have a handler, so an unknown identifier
// is a startup error instead of a runtime crash.
func New(
	client llm.Client,
	responseCache *cache.ResponseCache,
	resolver *followup.Resolver,
	classifier *intent.Classifier,
	actionPlanner *planner.Planner,
	handlers []Handler,
	log *interactionlog.Logger,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table := make(map[planner.Action]Handler, len(handlers))
	for _, h := range handlers {
		a := h.Action()
		if !planner.Known(a) {
			return nil, fmt.Errorf("handler registered for unknown action %q", a)
		}
		if _, dup := table[a]; dup {
			return nil, fmt.Errorf("duplicate handler for action %q", a)
		}
		table[a] = h
	}
	for _, a := range planner.Vocabulary() {
		if _, ok := table[a]; !ok {
			return nil, fmt.Errorf("no handler registered for action %q", a)
		}
	}

	return &Orchestrator{
		llm:      client,
		cache:    responseCache,
		followup: resolver,
		intents:  classifier,
		planner:  actionPlanner,
		tracker:  convo.NewClarificationTracker(logger),
		handlers: table,
		log:      log,
		logger:   logger,
	}, nil
}

// Process runs the pipeline for one turn and returns the assembled
// response plus the new Turn for the caller to append. State transitions
// (turn status, the previous turn's Ignored flip, the interaction log) are
// committed together at the end; a cancelled request leaves conversation
// state untouched.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*convo.Response, *convo.Turn, error) {
	turn := convo.NewTurn(req.ConversationID, req.Prompt)

	// Step 1: correct obvious typos (cached model call; failure keeps the
	// raw text).
	turn.CorrectedText = o.correct(ctx, req.Prompt)

	// Steps 2-3: resolve the message against the pending clarification or
	// the previous question. No state is mutated here; the Ignored flip is
	// part of the commit below.
	effective := turn.CorrectedText
	isReply := false
	if req.LastTurnWasClarification {
		pending := convo.LastAssistantMessage(req.History)
		previous := convo.LastUserQuestion(req.History)
		isReply, effective = o.followup.ResolveReplyToClarification(ctx, turn.CorrectedText, pending, previous)
	} else {
		effective = o.followup.ResolveFollowUp(ctx, turn.CorrectedText, req.History)
	}
	turn.EffectiveText = effective

	// Step 4: classify intent (cached; failure degrades inside).
	classification := o.intents.Classify(ctx, effective)
	turn.Intent = classification.Intent

	// Step 5: plan the action sequence.
	actions := o.planner.Plan(classification)
	turn.ActionSequence = planner.Strings(actions)

	// Step 6: execute actions in order over the shared per-turn context.
	// Execution truncates at the first clarification action.
	tctx := convo.NewContext(effective)
	incomplete := false
	pendingQuestion := ""
	for _, action := range actions {
		handler := o.handlers[action]
		part := handler.Handle(ctx, &HandlerRequest{
			TurnID:        turn.ID,
			EffectiveText: effective,
			Ctx:           tctx,
		})
		tctx.AddPart(part)
		if action == planner.ActionAskClarification {
			incomplete = true
			pendingQuestion = part.Text
			break
		}
	}

	// Step 7: assemble response parts in execution order.
	parts := tctx.Parts
	if len(parts) == 0 {
		parts = []convo.ResponsePart{convo.TextPart("I wasn't able to produce an answer for that.")}
	}

	// Cancellation boundary: nothing below runs for an abandoned request,
	// so no partial turn or tracker state is ever committed.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Step 8: commit state transitions and log.
	prevIgnored := false
	if req.LastTurnWasClarification {
		prevIgnored = o.tracker.ResolvePending(req.PreviousTurn, isReply)
		if req.PreviousTurn == nil {
			prevIgnored = !isReply
		}
	}
	if incomplete {
		if err := o.tracker.MarkIncomplete(turn, pendingQuestion); err != nil {
			o.logger.Warn("failed to mark turn incomplete", zap.Error(err))
		}
	}
	o.tracker.Finalize(turn)

	status := convo.QueryComplete
	switch {
	case incomplete:
		status = convo.QueryIncomplete
	case prevIgnored:
		status = convo.QueryIgnoredAndNew
	}

	resp := &convo.Response{
		Parts:                parts,
		CorrectedPrompt:      turn.CorrectedText,
		QueryStatus:          status,
		PendingClarification: turn.PendingClarification,
		PreviousQueryIgnored: prevIgnored,
	}

	o.persist(turn, tctx, resp)
	return resp, turn, nil
}

// correct runs the cached spell-correction call. Failure is non-fatal: the
// raw prompt flows on unchanged.
func (o *Orchestrator) correct(ctx context.Context, prompt string) string {
	corrected, err := o.cache.GetOrCall(ctx, "spell_correct",
		map[string]string{"text": prompt},
		func(callCtx context.Context) (string, error) {
			return o.llm.CompleteWithSystem(callCtx, correctSystemPrompt, prompt)
		})
	if err != nil {
		o.logger.Warn("spell correction failed, using raw prompt", zap.Error(err))
		return prompt
	}
	if corrected == "" {
		return prompt
	}
	return corrected
}

// persist writes the turn's metadata to the interaction log
// (log-and-continue).
func (o *Orchestrator) persist(turn *convo.Turn, tctx *convo.Context, resp *convo.Response) {
	if o.log == nil {
		return
	}
	respType := string(convo.PartMulti)
	items := len(resp.Parts)
	if len(resp.Parts) == 1 {
		respType, items = resp.Parts[0].Summary()
	}
	o.log.Log(interactionlog.Record{
		TurnID:         turn.ID,
		ConversationID: turn.ConversationID,
		RawText:        turn.RawText,
		CorrectedText:  turn.CorrectedText,
		EffectiveText:  turn.EffectiveText,
		Intent:         turn.Intent,
		ActionSequence: turn.ActionSequence,
		SQLText:        tctx.LastQuery,
		Explanation:    tctx.Explanation,
		ResponseType:   respType,
		ResponseItems:  items,
		Status:         string(turn.Status),
	})
}
