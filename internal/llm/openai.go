// Package llm – OpenAI-compatible HTTP client.
//
// This file implements Client against an OpenAI-style /chat/completions
// endpoint (OpenRouter, OpenAI, or any compatible gateway). Streaming uses
// server-sent events: the body is read line by line, each "data: {...}" line
// carries a delta fragment, and "data: [DONE]" terminates the stream.
//
// Error mapping:
//   - transport failures (dial, DNS, timeout) → ErrUnreachable
//   - HTTP 429 or a rate-limit error body     → *RateLimitError with the
//     backend's wait hint parsed out of the message when present
//   - missing choices / undecodable payload   → ErrMalformedResponse
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fitbuddy/go-coach-backend/internal/config"
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
// Construct it once at startup with NewOpenAIClient and share it; it is safe
// for concurrent use.
type OpenAIClient struct {
	cfg  config.LLMConfig
	http *http.Client
}

// NewOpenAIClient builds a client from configuration. Credentials come from
// the environment via config; they are never embedded as literals.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

//
// Wire types
//

// chatRequest is the JSON body for POST {base}/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// chatResponse covers both delivery modes: full responses populate
// choices[].message, streamed chunks populate choices[].delta.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

// apiError is the error envelope OpenAI-compatible backends return.
type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ErrUnreachable
	}
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", ErrMalformedResponse
	}
	if out.Error != nil {
		return "", mapAPIError(resp.StatusCode, out.Error)
	}
	if len(out.Choices) == 0 {
		return "", ErrMalformedResponse
	}
	return out.Choices[0].Message.Content, nil
}

// Stream implements Client. Fragments are delivered through fn in arrival
// order; the concatenated reply is returned when the backend signals [DONE]
// or closes the stream.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", c.checkStatus(resp.StatusCode, body)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return full.String(), nil
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip undecodable keep-alive lines; a fully empty stream is
			// caught below.
			continue
		}
		if chunk.Error != nil {
			return full.String(), mapAPIError(resp.StatusCode, chunk.Error)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := fn(delta); err != nil {
			return full.String(), err
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), ErrUnreachable
	}
	if full.Len() == 0 {
		return "", ErrMalformedResponse
	}
	return full.String(), nil
}

// do builds and issues the HTTP request for either delivery mode.
func (c *OpenAIClient) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	msgs := make([]Message, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Turns...)

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: pick(req.Temperature, c.cfg.Temperature),
		MaxTokens:   pickInt(req.MaxTokens, c.cfg.MaxTokens),
		TopP:        pick(req.TopP, c.cfg.TopP),
		TopK:        pickInt(req.TopK, c.cfg.TopK),
		Stream:      stream,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.AppTitle != "" {
		httpReq.Header.Set("X-Title", c.cfg.AppTitle)
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrUnreachable
	}
	return resp, nil
}

// checkStatus maps a non-200 response to the error taxonomy.
func (c *OpenAIClient) checkStatus(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var out chatResponse
	_ = json.Unmarshal(body, &out)
	if out.Error != nil {
		return mapAPIError(status, out.Error)
	}
	if status == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: 0}
	}
	if status >= 500 {
		return ErrUnreachable
	}
	return ErrMalformedResponse
}

// mapAPIError converts a backend error envelope into a taxonomy error.
func mapAPIError(status int, e *apiError) error {
	msg := e.Message
	if status == http.StatusTooManyRequests || containsRateLimit(msg) {
		return &RateLimitError{
			RetryAfter: parseRetryHint(msg),
			Detail:     msg,
		}
	}
	if status >= 500 {
		return ErrUnreachable
	}
	return ErrMalformedResponse
}

// retryHintRE pulls the first integer out of a rate-limit message, the way
// backends phrase hints like "Rate limit exceeded, retry in 40 seconds".
var retryHintRE = regexp.MustCompile(`\d+`)

// parseRetryHint extracts a wait-seconds hint from a rate-limit message,
// returning 0 when none is present.
func parseRetryHint(msg string) int {
	m := retryHintRE.FindString(msg)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// containsRateLimit reports whether a backend message describes throttling.
func containsRateLimit(msg string) bool {
	low := strings.ToLower(msg)
	return strings.Contains(low, "rate limit") || strings.Contains(low, "quota")
}

// pick returns v unless it is zero, in which case def is used.
func pick(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func pickInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
