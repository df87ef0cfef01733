// Package dispatch resolves one input line to an explicit tool command,
// a chat turn, or nothing, and drives the resulting execution. Executor
// failures are contained here: they come back as diagnostics on the
// Result, never as errors that could unwind the REPL.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"qwencli/internal/history"
	"qwencli/internal/intent"
	"qwencli/internal/llm"
	"qwencli/internal/logging"
	"qwencli/internal/tools"
)

// Action classifies one input line.
type Action int

const (
	// ActionEmpty means the line held nothing to do.
	ActionEmpty Action = iota

	// ActionCommand means an explicit slash command ran a tool.
	ActionCommand

	// ActionChat means the line went to the model.
	ActionChat
)

// command maps a slash verb to a tool and its argument shape.
type command struct {
	tool    string
	minArgs int

	// build turns the argument tail into the tool payload.
	build func(args []string) map[string]any
}

// commandTable holds the explicit verbs. An under-supplied command is
// not an error; it falls through to chat.
var commandTable = map[string]command{
	"/read": {
		tool: "file_read", minArgs: 1,
		build: func(args []string) map[string]any {
			return map[string]any{"path": args[0]}
		},
	},
	"/write": {
		tool: "file_write", minArgs: 2,
		build: func(args []string) map[string]any {
			return map[string]any{"path": args[0], "content": strings.Join(args[1:], " ")}
		},
	},
	"/list": {
		tool: "file_list", minArgs: 0,
		build: func(args []string) map[string]any {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return map[string]any{"dir": dir}
		},
	},
	"/analyze": {
		tool: "analyze", minArgs: 1,
		build: func(args []string) map[string]any {
			return map[string]any{"path": args[0]}
		},
	},
	"/code": {
		tool: "code_runner", minArgs: 2,
		build: func(args []string) map[string]any {
			return map[string]any{"language": args[0], "source": strings.Join(args[1:], " ")}
		},
	},
	"/translate": {
		tool: "translate", minArgs: 2,
		build: func(args []string) map[string]any {
			return map[string]any{"target": args[0], "text": strings.Join(args[1:], " ")}
		},
	},
	"/summary": {
		tool: "summarize", minArgs: 1,
		build: func(args []string) map[string]any {
			return map[string]any{"text": strings.Join(args, " ")}
		},
	},
	"/search": {
		tool: "search", minArgs: 1,
		build: func(args []string) map[string]any {
			return map[string]any{"query": strings.Join(args, " ")}
		},
	},
	"/calc": {
		tool: "calculator", minArgs: 1,
		build: func(args []string) map[string]any {
			return map[string]any{"expression": strings.Join(args, " ")}
		},
	},
}

// Result is the outcome of dispatching one line.
type Result struct {
	// Action says which path the line took.
	Action Action

	// Reply is the assistant's answer text for a chat turn.
	Reply string

	// Thinking is the model's reasoning trace, when present.
	Thinking string

	// Tool holds the tool execution outcome, explicit or inferred.
	Tool *tools.ToolResult

	// Diagnostic describes a contained failure for display.
	Diagnostic string
}

// Dispatcher routes input lines.
type Dispatcher struct {
	registry *tools.Registry
	detector *intent.Detector
	client   llm.Client
	hist     *history.History
}

// New wires a dispatcher.
func New(registry *tools.Registry, detector *intent.Detector, client llm.Client, hist *history.History) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		detector: detector,
		client:   client,
		hist:     hist,
	}
}

// classify decides the path for one line without executing anything.
func classify(line string) (Action, *command, []string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ActionEmpty, nil, nil
	}

	fields := strings.Fields(trimmed)
	if cmd, ok := commandTable[strings.ToLower(fields[0])]; ok {
		args := fields[1:]
		if len(args) >= cmd.minArgs {
			return ActionCommand, &cmd, args
		}
		// Forgiving UX: an under-supplied command reads as prose.
		logging.DispatchDebug("under-supplied command %q falls through to chat", fields[0])
	}
	return ActionChat, nil, nil
}

// Dispatch executes one line. Chat deltas stream through onDelta and
// onThinking as they arrive; both may be nil. The returned error is
// reserved for context cancellation; everything else is contained in
// the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, onDelta, onThinking func(string)) (*Result, error) {
	action, cmd, args := classify(line)

	switch action {
	case ActionEmpty:
		return &Result{Action: ActionEmpty}, nil
	case ActionCommand:
		return d.runCommand(ctx, line, cmd, args), nil
	default:
		return d.chat(ctx, strings.TrimSpace(line), onDelta, onThinking)
	}
}

func (d *Dispatcher) runCommand(ctx context.Context, line string, cmd *command, args []string) *Result {
	logging.Dispatch("explicit command -> %s", cmd.tool)

	res, err := d.registry.Execute(ctx, cmd.tool, cmd.build(args))
	out := &Result{Action: ActionCommand, Tool: res}
	if err != nil {
		out.Diagnostic = fmt.Sprintf("%s failed: %v", cmd.tool, err)
		return out
	}

	d.hist.Append(history.Turn{Role: history.RoleUser, Content: strings.TrimSpace(line)})
	d.hist.Append(history.Turn{Role: history.RoleTool, Content: res.Result, ToolName: cmd.tool})
	return out
}

// chat runs one model round trip, then at most one inferred tool
// invocation. Turns are appended only after the stream completes, so a
// cancelled reply leaves history untouched.
func (d *Dispatcher) chat(ctx context.Context, userText string, onDelta, onThinking func(string)) (*Result, error) {
	messages := d.buildMessages(userText)

	contentCh, errCh := d.client.Stream(ctx, messages, llm.ChatOptions)

	var thinking, answer strings.Builder
	var splitter llm.StreamSplitter

	// Content and error channels are drained concurrently so a client
	// that reports its error before the content channel closes cannot
	// wedge the turn.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		for delta := range contentCh {
			th, an := splitter.Feed(delta)
			if th != "" {
				thinking.WriteString(th)
				if onThinking != nil {
					onThinking(th)
				}
			}
			if an != "" {
				answer.WriteString(an)
				if onDelta != nil {
					onDelta(an)
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		return <-errCh
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return &Result{Action: ActionChat}, ctx.Err()
		}
		return &Result{
			Action:     ActionChat,
			Diagnostic: fmt.Sprintf("model request failed: %v", err),
		}, nil
	}

	reply := strings.TrimSpace(answer.String())
	result := &Result{
		Action:   ActionChat,
		Reply:    reply,
		Thinking: strings.TrimSpace(thinking.String()),
	}
	if reply == "" {
		result.Diagnostic = "model returned an empty reply"
		return result, nil
	}

	d.hist.Append(history.Turn{Role: history.RoleUser, Content: userText})
	d.hist.Append(history.Turn{Role: history.RoleAssistant, Content: reply})

	if inv := d.detector.Detect(reply, userText); inv != nil {
		logging.Dispatch("inferred invocation -> %s", inv.Tool)
		res, err := d.registry.Execute(ctx, inv.Tool, inv.Args)
		result.Tool = res
		if err != nil {
			result.Diagnostic = fmt.Sprintf("%s failed: %v", inv.Tool, err)
			return result, nil
		}
		d.hist.Append(history.Turn{Role: history.RoleTool, Content: res.Result, ToolName: inv.Tool})
	}

	return result, nil
}

// buildMessages assembles the wire messages: system prompt, prior
// turns, then the new user line.
func (d *Dispatcher) buildMessages(userText string) []llm.Message {
	turns := d.hist.Snapshot()
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{Role: "system", Content: llm.SystemPrompt})

	for _, t := range turns {
		role := t.Role
		if role == history.RoleTool {
			// Tool output is replayed as assistant context.
			role = history.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userText})
}
