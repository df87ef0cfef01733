// Package llm speaks the OpenAI-compatible chat completion protocol to a
// locally hosted model server (vLLM, SGLang, llama.cpp and friends all
// expose it).
package llm

import (
	"context"
	"errors"
)

// ErrUpstream indicates the model server failed or returned nothing
// usable. Callers wrap it with context.
var ErrUpstream = errors.New("upstream model failure")

// Message is one chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion call. Zero values fall back to the
// client's configured defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is the completion interface the tools and the REPL consume.
type Client interface {
	// Complete runs one blocking chat completion.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	// Stream runs one streaming chat completion. Content deltas arrive
	// on the first channel; a terminal error (if any) on the second.
	// Both channels are closed when the stream ends.
	Stream(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error)

	// Model returns the configured model name.
	Model() string
}

// request is the chat completion request body.
type request struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
	Stream      bool           `json:"stream,omitempty"`
	StreamOpts  *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// response covers both the blocking body and individual stream chunks.
type response struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message *Message `json:"message,omitempty"`
	Delta   *Message `json:"delta,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ModelInfo is one entry from the endpoint's model listing.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// modelsResponse is the GET /models body.
type modelsResponse struct {
	Data  []ModelInfo `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}
