package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qwencli/internal/config"
	"qwencli/internal/logging"
)

// HTTPClient talks to an OpenAI-compatible /chat/completions endpoint.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	temp       float64
	httpClient *http.Client
}

// NewClient builds a client from the LLM config section.
func NewClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		apiKey:    cfg.LLM.APIKey,
		baseURL:   strings.TrimRight(cfg.LLM.BaseURL, "/"),
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		temp:      cfg.LLM.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.GetLLMTimeout(),
		},
	}
}

// Model returns the configured model name.
func (c *HTTPClient) Model() string {
	return c.model
}

func (c *HTTPClient) buildRequest(messages []Message, opts Options, stream bool) request {
	req := request{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
		Stream:      stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if stream {
		req.StreamOpts = &streamOptions{IncludeUsage: true}
	}
	return req
}

func (c *HTTPClient) newHTTPRequest(ctx context.Context, body request, stream bool) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Complete runs one blocking chat completion.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("complete: model=%s messages=%d", c.model, len(messages))

	req, err := c.newHTTPRequest(ctx, c.buildRequest(messages, opts, false), false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("complete: transport failure: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.APIError("complete: status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstream, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}

	logging.API("complete: done in %v, %d chars", time.Since(start), len(text))
	return text, nil
}

// Models lists the models the endpoint serves.
func (c *HTTPClient) Models(ctx context.Context) ([]ModelInfo, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("models: transport failure: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.APIError("models: status %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, parsed.Error.Message)
	}

	logging.APIDebug("models: endpoint serves %d models", len(parsed.Data))
	return parsed.Data, nil
}

// Stream runs one streaming chat completion. Deltas are sent as they
// arrive; nothing is buffered beyond the channel capacity.
func (c *HTTPClient) Stream(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	contentCh := make(chan string, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(contentCh)
		defer close(errCh)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
			defer cancel()
		}

		start := time.Now()
		logging.APIDebug("stream: model=%s messages=%d", c.model, len(messages))

		req, err := c.newHTTPRequest(ctx, c.buildRequest(messages, opts, true), true)
		if err != nil {
			errCh <- fmt.Errorf("%w: %v", ErrUpstream, err)
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logging.APIError("stream: transport failure: %v", err)
			errCh <- fmt.Errorf("%w: %v", ErrUpstream, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			logging.APIError("stream: status %d: %s", resp.StatusCode, string(body))
			errCh <- fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				logging.API("stream: done in %v", time.Since(start))
				return
			}

			var chunk response
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip keepalives and unparseable frames.
				continue
			}
			if chunk.Error != nil {
				errCh <- fmt.Errorf("%w: %s", ErrUpstream, chunk.Error.Message)
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case contentCh <- delta:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			logging.APIError("stream: scan failure after %v: %v", time.Since(start), err)
			errCh <- fmt.Errorf("%w: %v", ErrUpstream, err)
			return
		}
		logging.API("stream: done in %v", time.Since(start))
	}()

	return contentCh, errCh
}
