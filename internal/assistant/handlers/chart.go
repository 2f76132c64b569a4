package handlers

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"tablewise/internal/assistant"
	"tablewise/internal/convo"
	"tablewise/internal/interactionlog"
	"tablewise/internal/planner"
)

// ChartHandler builds a chart configuration from the table the preceding
// run_query action left on the context. Rendering is the UI's job.
type ChartHandler struct {
	deps Deps
}

// NewChartHandler creates the generate_chart handler.
func NewChartHandler(deps Deps) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// Action implements assistant.Handler.
func (h *ChartHandler) Action() planner.Action {
	return planner.ActionGenerateChart
}

// Handle synthesizes a chart config from the last table: first column as
// labels, first numeric column as values. No table or no numeric column is
// a handler failure, reported as an explanatory part.
func (h *ChartHandler) Handle(ctx context.Context, req *assistant.HandlerRequest) convo.ResponsePart {
	table := req.Ctx.LastTable
	if table == nil || len(table.Columns) < 2 || len(table.Rows) == 0 {
		return h.fail(req, "chart_input",
			"chart requested but no two-column table result is available")
	}

	valueCol := -1
	values := make([]float64, 0, len(table.Rows))
	for col := 1; col < len(table.Columns); col++ {
		values = values[:0]
		ok := true
		for _, row := range table.Rows {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				ok = false
				break
			}
			values = append(values, v)
		}
		if ok {
			valueCol = col
			break
		}
	}
	if valueCol < 0 {
		return h.fail(req, "chart_input", "no numeric column found to plot")
	}

	labels := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		labels[i] = row[0]
	}

	cfg := &convo.ChartConfig{
		Kind:   "bar",
		Title:  req.EffectiveText,
		XLabel: table.Columns[0],
		YLabel: table.Columns[valueCol],
		X:      labels,
		Y:      values,
	}
	req.Ctx.LastChart = cfg

	h.deps.logger().Debug("chart configured",
		zap.String("turn_id", req.TurnID),
		zap.Int("points", len(values)))
	return convo.ChartPart(cfg)
}

func (h *ChartHandler) fail(req *assistant.HandlerRequest, kind, msg string) convo.ResponsePart {
	h.deps.logger().Warn("generate_chart handler failed",
		zap.String("turn_id", req.TurnID), zap.String("reason", msg))
	if h.deps.Errors != nil {
		h.deps.Errors.LogError(interactionlog.ErrorRecord{
			TurnID:        req.TurnID,
			Action:        string(planner.ActionGenerateChart),
			EffectiveText: req.EffectiveText,
			SQLText:       req.Ctx.LastQuery,
			Kind:          kind,
			Message:       msg,
		})
	}
	return convo.TextPart("I couldn't build a chart from that result. " +
		"Try asking for values grouped by a category or a date.")
}
