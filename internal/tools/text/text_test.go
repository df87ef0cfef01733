package text

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qwencli/internal/llm"
)

type fakeClient struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	for _, m := range messages {
		switch m.Role {
		case "system":
			f.system = m.Content
		case "user":
			f.user = m.Content
		}
	}
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

func TestTranslator(t *testing.T) {
	client := &fakeClient{reply: "Bonjour"}
	tool := NewTranslator(client)

	got, err := tool.Execute(context.Background(), map[string]any{
		"text":   "Hello",
		"target": "French",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "Bonjour" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(client.system, "French") {
		t.Errorf("target language missing from prompt: %q", client.system)
	}
	if client.user != "Hello" {
		t.Errorf("payload %q", client.user)
	}
}

func TestTranslatorDefaultsToEnglish(t *testing.T) {
	client := &fakeClient{reply: "Hello"}
	tool := NewTranslator(client)

	if _, err := tool.Execute(context.Background(), map[string]any{"text": "Bonjour"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(client.system, "English") {
		t.Errorf("default target missing: %q", client.system)
	}
}

func TestSummarizer(t *testing.T) {
	client := &fakeClient{reply: "Short version."}
	tool := NewSummarizer(client)

	got, err := tool.Execute(context.Background(), map[string]any{"text": "Long text here."})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "Short version." {
		t.Errorf("got %q", got)
	}
}

func TestSearcher(t *testing.T) {
	client := &fakeClient{reply: "Go 1.0 was released in March 2012."}
	tool := NewSearcher(client)

	got, err := tool.Execute(context.Background(), map[string]any{"query": "go 1.0 release date"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != client.reply {
		t.Errorf("got %q", got)
	}
	if client.user != "go 1.0 release date" {
		t.Errorf("query %q", client.user)
	}
}

func TestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"transport failure", &fakeClient{err: llm.ErrUpstream}},
		{"empty reply", &fakeClient{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := NewTranslator(tt.client)
			_, err := translator.Execute(context.Background(), map[string]any{"text": "x"})
			if !errors.Is(err, llm.ErrUpstream) {
				t.Errorf("translate: got %v, want ErrUpstream", err)
			}

			searcher := NewSearcher(tt.client)
			_, err = searcher.Execute(context.Background(), map[string]any{"query": "x"})
			if !errors.Is(err, llm.ErrUpstream) {
				t.Errorf("search: got %v, want ErrUpstream", err)
			}

			summarizer := NewSummarizer(tt.client)
			_, err = summarizer.Execute(context.Background(), map[string]any{"text": "x"})
			if !errors.Is(err, llm.ErrUpstream) {
				t.Errorf("summarize: got %v, want ErrUpstream", err)
			}
		})
	}
}
