package main

import (
	"context"
	"fmt"
	"strings"

	"qwencli/internal/history"
	"qwencli/internal/logging"
)

const helpText = `# qwen commands

## Tool commands

| Command | Action |
|---|---|
| ` + "`/read <path>`" + ` | Show a file |
| ` + "`/write <path> <content>`" + ` | Write a file |
| ` + "`/list [dir]`" + ` | List a directory |
| ` + "`/code <lang> <source>`" + ` | Run a code snippet |
| ` + "`/translate <lang> <text>`" + ` | Translate text |
| ` + "`/summary <text>`" + ` | Summarize text |
| ` + "`/search <query>`" + ` | Look something up |
| ` + "`/calc <expression>`" + ` | Evaluate arithmetic |
| ` + "`/analyze <path>`" + ` | Have the model review a file |

## Session commands

| Command | Action |
|---|---|
| ` + "`history`" + ` | Show recent turns |
| ` + "`context`" + ` | Show token budget usage |
| ` + "`model`" + ` | Show the active model and what the endpoint serves |
| ` + "`recall <query>`" + ` | Search archived conversations |
| ` + "`clear`" + ` | Forget the conversation |
| ` + "`save`" + ` | Save the session now |
| ` + "`quit`" + `, ` + "`exit`" + `, ` + "`/q`" + ` | Save and exit |

Anything else is sent to the model. When a reply calls for a tool,
qwen runs it and shows the result.
`

// handleMeta intercepts session-level commands. Returns handled and
// whether the REPL should exit.
func (s *chatSession) handleMeta(line string) (handled, quit bool) {
	verb, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(verb) {
	case "quit", "exit", "/q":
		return true, true

	case "help":
		fmt.Print(s.safeRenderMarkdown(helpText))
		return true, false

	case "history":
		s.showHistory()
		return true, false

	case "context":
		s.showContext()
		return true, false

	case "model", "/model":
		s.showModels()
		return true, false

	case "clear":
		s.hist.Clear()
		s.archived = 0
		fmt.Println(s.styles.muted.Render("Conversation cleared."))
		logging.Session("History cleared")
		return true, false

	case "save":
		if err := s.saveSession(); err != nil {
			fmt.Println(s.styles.errText.Render("Save failed: " + err.Error()))
		} else {
			fmt.Println(s.styles.muted.Render("Session saved."))
		}
		return true, false

	case "recall":
		query := strings.TrimSpace(rest)
		if query == "" {
			fmt.Println(s.styles.muted.Render("Usage: recall <query>"))
			return true, false
		}
		s.showRecall(query)
		return true, false
	}

	return false, false
}

// showHistory prints the last ten turns with truncated previews.
func (s *chatSession) showHistory() {
	turns := s.hist.Snapshot()
	if len(turns) == 0 {
		fmt.Println(s.styles.muted.Render("No messages yet."))
		return
	}

	start := 0
	if len(turns) > 10 {
		start = len(turns) - 10
		fmt.Println(s.styles.muted.Render(
			fmt.Sprintf("(showing last 10 of %d messages)", len(turns))))
	}
	for _, t := range turns[start:] {
		label := t.Role
		if t.Role == history.RoleTool && t.ToolName != "" {
			label = "tool:" + t.ToolName
		}
		fmt.Printf("  %s %s\n", s.styles.label.Render(label+":"), preview(t.Content, 100))
	}
}

// showContext prints history size against the configured token budget.
func (s *chatSession) showContext() {
	window := s.cfg.LLM.ContextWindow
	used := history.EstimateTokens(s.hist)
	remaining := history.Remaining(s.hist, window)
	ratio := history.UsageRatio(s.hist, window)

	fmt.Printf("  messages:         %d\n", s.hist.Len())
	fmt.Printf("  characters:       %d\n", s.hist.Chars())
	fmt.Printf("  estimated tokens: %d\n", used)
	fmt.Printf("  remaining:        %d of %d\n", remaining, window)
	fmt.Printf("  usage:            %.1f%%\n", ratio*100)
}

// showModels prints the configured model and what the endpoint serves.
func (s *chatSession) showModels() {
	fmt.Printf("  configured: %s (%s)\n", s.cfg.LLM.Model, s.cfg.LLM.BaseURL)
	if s.client == nil {
		return
	}
	models, err := s.client.Models(context.Background())
	if err != nil {
		fmt.Println(s.styles.muted.Render("Endpoint model listing unavailable: " + err.Error()))
		return
	}
	for _, m := range models {
		line := "  served:     " + m.ID
		if m.OwnedBy != "" {
			line += " (" + m.OwnedBy + ")"
		}
		fmt.Println(line)
	}
}

// showRecall searches the archive for past turns.
func (s *chatSession) showRecall(query string) {
	if s.archive == nil {
		fmt.Println(s.styles.muted.Render("Archiving is disabled."))
		return
	}
	entries, err := s.archive.Recall(query, 10)
	if err != nil {
		fmt.Println(s.styles.errText.Render("Recall failed: " + err.Error()))
		return
	}
	if len(entries) == 0 {
		fmt.Println(s.styles.muted.Render("No matching turns found."))
		return
	}
	for _, e := range entries {
		fmt.Printf("  %s %s/%s: %s\n",
			s.styles.muted.Render(e.CreatedAt.Format("2006-01-02 15:04")),
			e.SessionID, e.Role, preview(e.Content, 100))
	}
}
