package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tablewise/internal/assistant"
	"tablewise/internal/convo"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Starts an interactive session against the local sales data.
Type a question, get an answer; /quit exits.`,
	RunE: runChat,
}

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	replyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Println(headerStyle.Render("tablewise") + "  ask about your sales data, /quit to exit")

	var (
		history          []convo.Message
		prevTurn         *convo.Turn
		wasClarification bool
	)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		resp, turn, err := a.orchestrator.Process(ctx, assistant.Request{
			ConversationID:           "chat",
			Prompt:                   line,
			History:                  history,
			LastTurnWasClarification: wasClarification,
			PreviousTurn:             prevTurn,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Println(noticeStyle.Render("error: " + err.Error()))
			continue
		}

		if resp.PreviousQueryIgnored {
			fmt.Println(noticeStyle.Render("(moving on from the earlier question)"))
		}
		for _, part := range resp.Parts {
			printPart(part)
		}
		if resp.PendingClarification != "" {
			fmt.Println(pendingStyle.Render("waiting on: " + resp.PendingClarification))
		}

		history = append(history,
			convo.Message{Role: convo.RoleUser, Content: line},
			assistantMessage(resp))
		prevTurn = turn
		wasClarification = resp.QueryStatus == convo.QueryIncomplete
	}
	return scanner.Err()
}

// assistantMessage flattens the response into a history entry so follow-up
// rewriting can see what the assistant said last.
func assistantMessage(resp *convo.Response) convo.Message {
	var texts []string
	for _, part := range resp.Parts {
		if part.Type == convo.PartText {
			texts = append(texts, part.Text)
		}
	}
	content := strings.Join(texts, "\n")
	if content == "" {
		kind, n := resp.Parts[0].Summary()
		content = fmt.Sprintf("[%s with %d items]", kind, n)
	}
	return convo.Message{
		Role:    convo.RoleAssistant,
		Content: content,
		Status:  string(resp.QueryStatus),
	}
}

func printPart(part convo.ResponsePart) {
	switch part.Type {
	case convo.PartText:
		fmt.Println(replyStyle.Render(part.Text))
	case convo.PartTable:
		printTable(part.Table)
	case convo.PartChart:
		c := part.Chart
		fmt.Println(replyStyle.Render(fmt.Sprintf("[%s chart: %s, %d points]",
			c.Kind, c.Title, len(c.Y))))
	}
}

func printTable(t *convo.Table) {
	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = len(col)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, col := range t.Columns {
		fmt.Fprintf(&b, "%-*s  ", widths[i], col)
	}
	b.WriteByte('\n')
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
			}
		}
		b.WriteByte('\n')
	}
	fmt.Print(replyStyle.Render(b.String()))
}
