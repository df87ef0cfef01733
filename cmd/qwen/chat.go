package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"qwencli/internal/config"
	"qwencli/internal/dispatch"
	"qwencli/internal/history"
	"qwencli/internal/intent"
	"qwencli/internal/llm"
	"qwencli/internal/logging"
	"qwencli/internal/store"
	"qwencli/internal/tools"
	"qwencli/internal/tools/calc"
	"qwencli/internal/tools/code"
	"qwencli/internal/tools/file"
	"qwencli/internal/tools/text"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// chatStyles holds the lipgloss styles for the line-based UI.
type chatStyles struct {
	banner   lipgloss.Style
	prompt   lipgloss.Style
	label    lipgloss.Style
	thinking lipgloss.Style
	tool     lipgloss.Style
	errText  lipgloss.Style
	muted    lipgloss.Style
}

func newChatStyles() chatStyles {
	return chatStyles{
		banner:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		prompt:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		label:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		thinking: lipgloss.NewStyle().Faint(true).Italic(true),
		tool:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		muted:    lipgloss.NewStyle().Faint(true),
	}
}

// chatSession holds the state of one interactive session.
type chatSession struct {
	id        string
	workspace string
	cfg       *config.Config
	client    *llm.HTTPClient
	hist      *history.History
	disp      *dispatch.Dispatcher
	archive   *store.Archive
	watcher   *config.Watcher
	renderer  *glamour.TermRenderer
	styles    chatStyles

	// archived counts history turns already written to the archive.
	archived int

	shutdownOnce sync.Once
}

// runChat boots the session and drives the REPL until exit.
func runChat() error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	if err := logging.Initialize(ws); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging unavailable: %v\n", err)
	}
	defer logging.CloseAll()

	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logging.Boot("Session starting, model=%s endpoint=%s", cfg.LLM.Model, cfg.LLM.BaseURL)

	s, err := newChatSession(ws, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted")
		cancel()
		s.shutdown()
		os.Exit(130)
	}()

	s.printBanner()
	s.loop(ctx)
	s.shutdown()
	return nil
}

// newChatSession wires the components for one session.
func newChatSession(ws string, cfg *config.Config) (*chatSession, error) {
	hist := history.New(cfg.Session.MaxTurns, cfg.Session.TrimTo)
	restored := 0
	sessionPath := filepath.Join(ws, cfg.Session.File)
	if err := hist.Load(sessionPath); err != nil {
		switch {
		case errors.Is(err, history.ErrCorruptSession):
			fmt.Fprintf(os.Stderr, "Warning: session file is corrupt, starting fresh: %v\n", err)
			logging.SessionWarn("Corrupt session file at %s: %v", sessionPath, err)
		case errors.Is(err, history.ErrPersistence):
			fmt.Fprintf(os.Stderr, "Warning: session file could not be read, starting without it: %v\n", err)
			logging.SessionWarn("Unreadable session file at %s: %v", sessionPath, err)
		default:
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	} else {
		restored = hist.Len()
	}

	client := llm.NewClient(cfg)
	registry := tools.NewRegistry()

	fileOps := file.NewOps(cfg)
	registry.MustRegister(file.NewReader(fileOps))
	registry.MustRegister(file.NewWriter(fileOps))
	registry.MustRegister(file.NewLister(fileOps))
	registry.MustRegister(file.NewAnalyzer(fileOps, client))

	executor := code.NewExecutor(cfg)
	registry.MustRegister(code.New(executor))
	registry.MustRegister(calc.New(client))
	registry.MustRegister(text.NewTranslator(client))
	registry.MustRegister(text.NewSummarizer(client))
	registry.MustRegister(text.NewSearcher(client))

	// Snippet files from a previous crash are stale by now.
	code.CleanupTempFiles(cfg.Execution.WorkDir)

	detector := intent.New(cfg.Tools.DefaultSnippetLanguage)
	disp := dispatch.New(registry, detector, client, hist)

	var archive *store.Archive
	if cfg.Session.ArchivePath != "" {
		a, err := store.Open(archivePath(ws, cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: archive unavailable: %v\n", err)
			logging.SessionWarn("Archive unavailable: %v", err)
		} else {
			archive = a
		}
	}

	s := &chatSession{
		id:        uuid.New().String()[:8],
		workspace: ws,
		cfg:       cfg,
		client:    client,
		hist:      hist,
		disp:      disp,
		archive:   archive,
		styles:    newChatStyles(),
		archived:  restored,
	}

	s.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	watcher, err := config.NewWatcher(ws, func(next *config.Config) {
		logging.Session("Config reloaded")
	})
	if err == nil {
		s.watcher = watcher
	}

	if restored > 0 {
		fmt.Println(s.styles.muted.Render(
			fmt.Sprintf("Loaded previous session with %d messages.", restored)))
		logging.Session("Restored %d turns from %s", restored, sessionPath)
	}

	return s, nil
}

// loop runs the read-dispatch-render cycle.
func (s *chatSession) loop(ctx context.Context) {
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			logging.BootDebug("Config watcher not started: %v", err)
		}
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(s.styles.prompt.Render("you") + " > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF or terminal gone
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)

		if handled, quit := s.handleMeta(line); handled {
			if quit {
				return
			}
			continue
		}

		s.dispatchLine(ctx, line)

		if ctx.Err() != nil {
			return
		}
	}
}

// dispatchLine sends one line through the dispatcher and renders the result.
func (s *chatSession) dispatchLine(ctx context.Context, line string) {
	thinkingShown := false
	answerStarted := false

	onThinking := func(delta string) {
		if !showThinking {
			return
		}
		if !thinkingShown {
			fmt.Println(s.styles.muted.Render("thinking:"))
			thinkingShown = true
		}
		fmt.Print(s.styles.thinking.Render(delta))
	}
	onDelta := func(delta string) {
		if !answerStarted {
			if thinkingShown {
				fmt.Println()
			}
			fmt.Println(s.styles.label.Render("qwen") + ":")
			answerStarted = true
		}
		fmt.Print(delta)
	}

	res, err := s.disp.Dispatch(ctx, line, onDelta, onThinking)
	if answerStarted {
		fmt.Println()
	}
	if err != nil {
		// Cancellation is the only error path out of Dispatch.
		if !errors.Is(err, context.Canceled) {
			fmt.Println(s.styles.errText.Render("Error: " + err.Error()))
		}
		return
	}

	switch res.Action {
	case dispatch.ActionEmpty:
		return
	case dispatch.ActionCommand:
		if res.Diagnostic != "" {
			fmt.Println(s.styles.errText.Render(res.Diagnostic))
			return
		}
		if res.Tool != nil {
			fmt.Println(s.styles.tool.Render("["+res.Tool.ToolName+"]") + " " + res.Tool.Result)
		}
	case dispatch.ActionChat:
		if res.Diagnostic != "" {
			fmt.Println(s.styles.errText.Render(res.Diagnostic))
		}
		if res.Tool != nil {
			fmt.Println(s.styles.tool.Render("["+res.Tool.ToolName+"]") + " " + res.Tool.Result)
		}
	}
	fmt.Println()
}

// printBanner prints the startup header.
func (s *chatSession) printBanner() {
	fmt.Println(s.styles.banner.Render(fmt.Sprintf(" %s %s ", s.cfg.Name, s.cfg.Version)))
	fmt.Println(s.styles.muted.Render(fmt.Sprintf("model %s | session %s", s.cfg.LLM.Model, s.id)))
	fmt.Println(s.styles.muted.Render("Type 'help' for commands, 'quit' to exit."))
	fmt.Println()
}

// shutdown saves the session and releases resources. Safe to call twice.
func (s *chatSession) shutdown() {
	s.shutdownOnce.Do(func() {
		if err := s.saveSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save session: %v\n", err)
		} else {
			fmt.Println(s.styles.muted.Render("Session saved."))
		}
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.archive != nil {
			s.archive.Close()
		}
		logging.Session("Session %s ended with %d turns", s.id, s.hist.Len())
	})
}

// saveSession persists history to disk and syncs new turns to the archive.
func (s *chatSession) saveSession() error {
	path := filepath.Join(s.workspace, s.cfg.Session.File)
	if err := s.hist.Save(path); err != nil {
		logging.SessionError("Save failed: %v", err)
		return err
	}
	logging.Session("Saved %d turns to %s", s.hist.Len(), path)

	if s.archive != nil {
		turns := s.hist.Snapshot()
		if s.archived < len(turns) {
			if err := s.archive.AppendTurns(s.id, turns[s.archived:]); err != nil {
				logging.SessionWarn("Archive sync failed: %v", err)
			} else {
				s.archived = len(turns)
			}
		}
	}
	return nil
}

// safeRenderMarkdown renders markdown with panic recovery.
func (s *chatSession) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if s.renderer != nil && content != "" {
		rendered, err := s.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

// archivePath resolves the archive location against the workspace.
func archivePath(ws string, cfg *config.Config) string {
	p := cfg.Session.ArchivePath
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws, p)
}

// preview truncates content for one-line display.
func preview(sv string, maxLen int) string {
	sv = strings.ReplaceAll(sv, "\n", " ")
	runes := []rune(sv)
	if len(runes) <= maxLen {
		return sv
	}
	return string(runes[:maxLen]) + "..."
}
