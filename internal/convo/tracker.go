package convo

import (
	"fmt"

	"go.uber.org/zap"
)

// =============================================================================
// CLARIFICATION TRACKER
// =============================================================================

// ClarificationTracker applies the three-state clarification lifecycle to
// turns. A new turn starts Pending; it finishes as exactly one of Complete
// or Incomplete, and the only cross-turn mutation allowed is flipping the
// previous Incomplete turn to Ignored when the user moves on.
type ClarificationTracker struct {
	logger *zap.Logger
}

// NewClarificationTracker creates a tracker. A nil logger disables logging.
func NewClarificationTracker(logger *zap.Logger) *ClarificationTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClarificationTracker{logger: logger}
}

// MarkIncomplete records that the turn ended with a clarification question.
func (t *ClarificationTracker) MarkIncomplete(turn *Turn, question string) error {
	if turn.Status.Terminal() {
		return fmt.Errorf("turn %s is %s; cannot mark incomplete", turn.ID, turn.Status)
	}
	turn.Status = StatusIncomplete
	turn.PendingClarification = question
	t.logger.Debug("turn marked incomplete",
		zap.String("turn_id", turn.ID),
		zap.String("question", question))
	return nil
}

// Finalize settles a pending turn as Complete. Turns already marked
// Incomplete keep that status.
func (t *ClarificationTracker) Finalize(turn *Turn) {
	if turn.Status != StatusPending {
		return
	}
	turn.Status = StatusComplete
	t.logger.Debug("turn finalized", zap.String("turn_id", turn.ID))
}

// ResolvePending settles the fate of a previous Incomplete turn given
// whether the new message answered its clarification question.
//
// If the message was a reply, the previous turn stays Incomplete:
// completion is attributed to the new, merged turn, never retroactively.
// If it was not a reply, the previous turn flips to Ignored. Returns true
// when the flip happened.
func (t *ClarificationTracker) ResolvePending(prev *Turn, isReply bool) bool {
	if prev == nil || prev.Status != StatusIncomplete {
		return false
	}
	if isReply {
		return false
	}
	prev.Status = StatusIgnored
	t.logger.Debug("previous turn ignored",
		zap.String("turn_id", prev.ID),
		zap.String("question", prev.PendingClarification))
	return true
}
