package convo

// Context is the per-turn mutable accumulator threaded through action
// execution. It is created fresh at the start of each turn and discarded
// once the response is assembled; it never outlives its turn.
type Context struct {
	// EffectiveText is the standalone question after follow-up or
	// clarification rewriting.
	EffectiveText string

	// LastTable is the most recent tabular result produced by an action.
	LastTable *Table

	// LastQuery is the most recent generated query text.
	LastQuery string

	// LastChart is the most recent chart configuration.
	LastChart *ChartConfig

	// Explanation collects handler-provided notes about how the answer
	// was produced, for the interaction log.
	Explanation string

	// Parts collects response parts in execution order.
	Parts []ResponsePart
}

// NewContext creates an empty accumulator for one turn.
func NewContext(effectiveText string) *Context {
	return &Context{EffectiveText: effectiveText}
}

// AddPart appends a response part, keeping execution order.
func (c *Context) AddPart(p ResponsePart) {
	c.Parts = append(c.Parts, p)
	switch p.Type {
	case PartTable:
		c.LastTable = p.Table
	case PartChart:
		c.LastChart = p.Chart
	}
}
