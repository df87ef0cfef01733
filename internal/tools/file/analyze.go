package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"qwencli/internal/llm"
	"qwencli/internal/logging"
	"qwencli/internal/tools"
)

// analyzeLimit caps how much of a file is sent to the model.
const analyzeLimit = 5000

const analyzeSystemPrompt = "You are a code and document analyst. " +
	"Describe what the given file does, its structure, and anything notable " +
	"or problematic. Be concrete and concise."

// NewAnalyzer builds the file analysis tool: read a file, send a capped
// portion to the model, return its assessment.
func NewAnalyzer(ops *Ops, client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "analyze",
		Description: "Reads a file and asks the model to analyze it",
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {Type: "string", Description: "file path"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path := tools.StringArg(args, "path")
			resolved, err := ops.resolve(path)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(resolved)
			if err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("%w: %s", tools.ErrNotFound, path)
				}
				return "", fmt.Errorf("read %s: %w", path, err)
			}

			content := string(data)
			if len(content) > analyzeLimit {
				content = content[:analyzeLimit] +
					fmt.Sprintf("\n\n[first %d of %d bytes shown]", analyzeLimit, len(data))
			}
			logging.Tools("file: analyzing %s (%d bytes)", path, len(data))

			reply, err := client.Complete(ctx, []llm.Message{
				{Role: "system", Content: analyzeSystemPrompt},
				{Role: "user", Content: fmt.Sprintf("File: %s\n\n%s", path, content)},
			}, llm.CodeOptions)
			if err != nil {
				return "", err
			}
			reply = strings.TrimSpace(reply)
			if reply == "" {
				return "", fmt.Errorf("%w: model returned empty analysis", llm.ErrUpstream)
			}
			return reply, nil
		},
	}
}
