// Package text holds the model-delegating tools: translation,
// summarization and search. Each builds a focused prompt and runs one
// completion; transport failures and empty replies surface as
// ErrUpstream.
package text

import (
	"context"
	"fmt"
	"strings"

	"qwencli/internal/llm"
	"qwencli/internal/tools"
)

func complete(ctx context.Context, client llm.Client, system, user string, opts llm.Options) (string, error) {
	reply, err := client.Complete(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: empty reply", llm.ErrUpstream)
	}
	return reply, nil
}

// NewTranslator builds the translation tool. Target defaults to
// English when unspecified.
func NewTranslator(client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "translate",
		Description: "Translates text to a target language",
		Schema: tools.ToolSchema{
			Required: []string{"text"},
			Properties: map[string]tools.Property{
				"text":   {Type: "string", Description: "text to translate"},
				"target": {Type: "string", Description: "target language", Default: "English"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			text := tools.StringArg(args, "text")
			target := tools.StringArg(args, "target")
			if target == "" {
				target = "English"
			}
			system := fmt.Sprintf("You are a translator. Translate the user's text to %s. Output only the translation.", target)
			return complete(ctx, client, system, text, llm.TranslateOptions)
		},
	}
}

// NewSummarizer builds the summarization tool.
func NewSummarizer(client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "summarize",
		Description: "Summarizes text in a few sentences",
		Schema: tools.ToolSchema{
			Required: []string{"text"},
			Properties: map[string]tools.Property{
				"text": {Type: "string", Description: "text to summarize"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			system := "Summarize the user's text in at most three sentences. Keep the key facts."
			return complete(ctx, client, system, tools.StringArg(args, "text"), llm.SummaryOptions)
		},
	}
}

// NewSearcher builds the search tool. The model answers from its own
// knowledge; it is framed as a lookup so replies stay factual and
// short.
func NewSearcher(client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "search",
		Description: "Looks up a factual query",
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "search query"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			system := "Answer the query factually and concisely, like the top result of a reference lookup. Say so plainly if you are unsure."
			return complete(ctx, client, system, tools.StringArg(args, "query"), llm.SummaryOptions)
		},
	}
}
