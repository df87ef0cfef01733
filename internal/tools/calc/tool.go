package calc

import (
	"context"
	"errors"
	"fmt"

	"qwencli/internal/llm"
	"qwencli/internal/logging"
	"qwencli/internal/tools"
)

// New builds the calculator tool. Plain arithmetic is computed locally;
// expressions the parser rejects are delegated to the model as a word
// problem.
func New(client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions; word problems go to the model",
		Schema: tools.ToolSchema{
			Required: []string{"expression"},
			Properties: map[string]tools.Property{
				"expression": {Type: "string", Description: "expression to evaluate"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			expr := tools.StringArg(args, "expression")

			result, err := Evaluate(expr)
			if err == nil {
				logging.ToolsDebug("calculator: evaluated %q locally", expr)
				return fmt.Sprintf("%s = %s", expr, Format(result)), nil
			}
			if !errors.Is(err, ErrParse) {
				// Valid arithmetic with a math error (division by zero).
				return "", err
			}

			logging.ToolsDebug("calculator: delegating %q to the model", expr)
			messages := []llm.Message{
				{Role: "system", Content: "You are a precise math assistant. Solve the problem and show the final answer clearly."},
				{Role: "user", Content: expr},
			}
			reply, err := client.Complete(ctx, messages, llm.CodeOptions)
			if err != nil {
				return "", fmt.Errorf("calculator fallback: %w", err)
			}
			return reply, nil
		},
	}
}
