package calc

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"qwencli/internal/llm"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2 * 10", 22},
		{"(2 + 2) * 10", 40},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right associative
		{"-5 + 3", -2},
		{"2 * -3", -6},
		{"sqrt(16)", 4},
		{"abs(-7.5)", 7.5},
		{"min(3, 8)", 3},
		{"max(3, 8)", 8},
		{"pow(2, 8)", 256},
		{"sqrt(min(16, 25)) + 1", 5},
		{"3.14 * 2", 6.28},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	tests := []string{
		"",
		"integrate x^2",
		"import os",
		"2 +",
		"(2 + 3",
		"2 + 3)",
		"foo(3)",
		"2 ** 3",         // python syntax, ** lexes as two operators
		"__import__('x')",
		"1;2",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			if !errors.Is(err, ErrParse) {
				t.Errorf("Evaluate(%q) err = %v, want ErrParse", expr, err)
			}
		})
	}
}

func TestEvaluateMathErrors(t *testing.T) {
	for _, expr := range []string{"1 / 0", "5 % 0", "sqrt(-1)"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			if err == nil {
				t.Fatalf("Evaluate(%q) should fail", expr)
			}
			if errors.Is(err, ErrParse) {
				t.Errorf("Evaluate(%q) is a math error, not a parse error", expr)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{22, "22"},
		{2.5, "2.5"},
		{-7, "-7"},
		{1024, "1024"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// fakeClient records the delegated prompt.
type fakeClient struct {
	reply string
	err   error
	asked string
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.asked = messages[len(messages)-1].Content
	return f.reply, f.err
}

func (f *fakeClient) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan string, <-chan error) {
	c := make(chan string)
	e := make(chan error)
	close(c)
	close(e)
	return c, e
}

func (f *fakeClient) Model() string { return "fake" }

func TestToolLocalEvaluation(t *testing.T) {
	client := &fakeClient{}
	tool := New(client)

	got, err := tool.Execute(context.Background(), map[string]any{"expression": "2 + 2 * 10"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(got, "22") {
		t.Errorf("result %q should contain 22", got)
	}
	if client.asked != "" {
		t.Error("plain arithmetic must not reach the model")
	}
}

func TestToolDelegatesWordProblems(t *testing.T) {
	client := &fakeClient{reply: "The integral is x^3/3 + C"}
	tool := New(client)

	got, err := tool.Execute(context.Background(), map[string]any{"expression": "integrate x^2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != client.reply {
		t.Errorf("result %q, want model reply", got)
	}
	if client.asked != "integrate x^2" {
		t.Errorf("model was asked %q", client.asked)
	}
}

func TestToolFallbackUpstreamFailure(t *testing.T) {
	client := &fakeClient{err: llm.ErrUpstream}
	tool := New(client)

	_, err := tool.Execute(context.Background(), map[string]any{"expression": "integrate x^2"})
	if !errors.Is(err, llm.ErrUpstream) {
		t.Errorf("got %v, want ErrUpstream", err)
	}
}
