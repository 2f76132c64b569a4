// Package convo defines the conversation data model shared by the
// orchestration pipeline: turns, response parts, the per-turn execution
// context, and the clarification lifecycle.
package convo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TURN STATUS
// =============================================================================

// TurnStatus is the clarification-lifecycle state of a turn.
type TurnStatus string

const (
	// StatusPending means the orchestrator has not finished the turn yet.
	StatusPending TurnStatus = "pending"

	// StatusComplete means the turn was answered without needing more input.
	StatusComplete TurnStatus = "complete"

	// StatusIncomplete means the turn ended with a clarification question.
	StatusIncomplete TurnStatus = "incomplete"

	// StatusIgnored means a prior incomplete turn was abandoned because the
	// user moved on to an unrelated question.
	StatusIgnored TurnStatus = "ignored"
)

// Terminal reports whether no further transition is allowed for this status.
// Incomplete is only terminal if the conversation never continues.
func (s TurnStatus) Terminal() bool {
	return s == StatusComplete || s == StatusIgnored
}

// =============================================================================
// MESSAGES AND CONVERSATION SNAPSHOT
// =============================================================================

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the caller-owned conversation history.
// The orchestrator receives history as a read-only snapshot and never
// mutates it.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
}

// LastUserQuestion returns the most recent user message in the history,
// or "" if there is none.
func LastUserQuestion(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the most recent assistant message, or "".
// Needed to detect a reply to a pending clarification question.
func LastAssistantMessage(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one user message and its processing record within a conversation.
// It is mutated only by the orchestrator while the turn is being processed
// and is immutable once a response has been returned, with one exception:
// the next turn may flip a previous Incomplete turn to Ignored.
type Turn struct {
	ID                   string     `json:"turn_id"`
	ConversationID       string     `json:"conversation_id,omitempty"`
	RawText              string     `json:"raw_text"`
	CorrectedText        string     `json:"corrected_text"`
	EffectiveText        string     `json:"effective_text"`
	Intent               string     `json:"intent"`
	ActionSequence       []string   `json:"action_sequence"`
	Status               TurnStatus `json:"status"`
	PendingClarification string     `json:"pending_clarification_question,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// NewTurn creates a pending turn for a raw user message.
func NewTurn(conversationID, rawText string) *Turn {
	return &Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		RawText:        rawText,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

// =============================================================================
// RESPONSE PARTS
// =============================================================================

// PartType identifies the payload carried by a ResponsePart.
type PartType string

const (
	PartText  PartType = "text"
	PartTable PartType = "table"
	PartChart PartType = "chart"
	PartMulti PartType = "multi"
)

// Table is a tabular query result.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ChartConfig describes a chart for the UI collaborator to render.
// Rendering itself happens outside this module.
type ChartConfig struct {
	Kind   string    `json:"kind"` // bar, line, pie
	Title  string    `json:"title"`
	XLabel string    `json:"x_label,omitempty"`
	YLabel string    `json:"y_label,omitempty"`
	X      []string  `json:"x"`
	Y      []float64 `json:"y"`
}

// ResponsePart is one unit of assistant output. Immutable once created.
// Exactly one payload field is set, selected by Type.
type ResponsePart struct {
	Type  PartType
	Text  string
	Table *Table
	Chart *ChartConfig
}

// TextPart builds a text response part.
func TextPart(text string) ResponsePart {
	return ResponsePart{Type: PartText, Text: text}
}

// TablePart builds a table response part.
func TablePart(t *Table) ResponsePart {
	return ResponsePart{Type: PartTable, Table: t}
}

// ChartPart builds a chart response part.
func ChartPart(c *ChartConfig) ResponsePart {
	return ResponsePart{Type: PartChart, Chart: c}
}

// MarshalJSON encodes a part as {"type": ..., "content": ...} so the wire
// shape matches what the UI collaborator consumes.
func (p ResponsePart) MarshalJSON() ([]byte, error) {
	var content interface{}
	switch p.Type {
	case PartText:
		content = p.Text
	case PartTable:
		content = p.Table
	case PartChart:
		content = p.Chart
	default:
		return nil, fmt.Errorf("cannot marshal response part of type %q", p.Type)
	}
	return json.Marshal(struct {
		Type    PartType    `json:"type"`
		Content interface{} `json:"content"`
	}{Type: p.Type, Content: content})
}

// UnmarshalJSON decodes the {"type", "content"} wire shape.
func (p *ResponsePart) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    PartType        `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Type = raw.Type
	switch raw.Type {
	case PartText:
		return json.Unmarshal(raw.Content, &p.Text)
	case PartTable:
		p.Table = &Table{}
		return json.Unmarshal(raw.Content, p.Table)
	case PartChart:
		p.Chart = &ChartConfig{}
		return json.Unmarshal(raw.Content, p.Chart)
	}
	return fmt.Errorf("cannot unmarshal response part of type %q", raw.Type)
}

// Summary describes a part for the interaction log: payload type plus item
// count. Never the payload itself.
func (p ResponsePart) Summary() (string, int) {
	switch p.Type {
	case PartTable:
		if p.Table != nil {
			return string(PartTable), len(p.Table.Rows)
		}
		return string(PartTable), 0
	case PartChart:
		if p.Chart != nil {
			return string(PartChart), len(p.Chart.X)
		}
		return string(PartChart), 0
	default:
		return string(PartText), 1
	}
}

// =============================================================================
// RESPONSE
// =============================================================================

// QueryStatus is the per-turn outcome reported to the caller.
type QueryStatus string

const (
	QueryComplete      QueryStatus = "complete"
	QueryIncomplete    QueryStatus = "incomplete"
	QueryIgnoredAndNew QueryStatus = "ignored-and-new"
)

// Response is the assembled answer for one processed turn.
type Response struct {
	Parts                []ResponsePart
	CorrectedPrompt      string
	QueryStatus          QueryStatus
	PendingClarification string
	PreviousQueryIgnored bool
}

// Content returns the wire-ready content value: a single part directly, or
// a multi wrapper preserving execution order.
func (r *Response) Content() interface{} {
	if len(r.Parts) == 1 {
		return r.Parts[0]
	}
	return struct {
		Type    PartType       `json:"type"`
		Content []ResponsePart `json:"content"`
	}{Type: PartMulti, Content: r.Parts}
}

// MarshalJSON encodes the full inbound-contract response shape.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Content              interface{} `json:"content"`
		CorrectedPrompt      string      `json:"corrected_prompt"`
		QueryStatus          QueryStatus `json:"query_status"`
		PendingClarification string      `json:"pending_clarification_question,omitempty"`
		PreviousQueryIgnored bool        `json:"previous_query_ignored"`
	}{
		Content:              r.Content(),
		CorrectedPrompt:      r.CorrectedPrompt,
		QueryStatus:          r.QueryStatus,
		PendingClarification: r.PendingClarification,
		PreviousQueryIgnored: r.PreviousQueryIgnored,
	})
}
