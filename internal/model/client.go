// Package model talks to a local generative text-model service through an
// Ollama-compatible HTTP API and adapts its output to the enhancement
// contract. All calls are serialized through a process-wide single-flight
// gate.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultModel      = "llama3.2"
	defaultNumPredict = 512
)

// Backend is the model capability boundary: an availability probe, a
// free-text generation call, and a JSON-constrained generation call.
type Backend interface {
	Available(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

// Client implements Backend against an Ollama-compatible server.
type Client struct {
	baseURL    string
	model      string
	numPredict int
	enabled    bool
	http       *http.Client
	gate       *Gate
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the inference server URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model name.
func WithModel(name string) ClientOption {
	return func(c *Client) { c.model = name }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithEnabled toggles the capability. A disabled client fails fast from
// Available without touching the network.
func WithEnabled(enabled bool) ClientOption {
	return func(c *Client) { c.enabled = enabled }
}

// NewClient creates a model client. Defaults to localhost:11434.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		numPredict: defaultNumPredict,
		enabled:    true,
		http:       &http.Client{Timeout: 60 * time.Second},
		gate:       NewGate(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate exposes the shared single-flight gate for tests.
func (c *Client) Gate() *Gate { return c.gate }

// Available probes the capability. It returns apperr.ErrModelUnavailable
// when the client is disabled or the server does not answer. The probe
// goes through the gate like every other call, so the service never sees
// it alongside an in-flight generation.
func (c *Client) Available(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("%w: disabled by configuration", apperr.ErrModelUnavailable)
	}
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := c.gate.Do(probeCtx, func() error {
		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/tags", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("probe status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}
	return nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate issues one bounded completion call through the gate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "")
}

// GenerateJSON issues one JSON-constrained completion call through the
// gate and decodes the result into out. When the raw response is not
// itself valid JSON, the first balanced object found in it is tried as a
// safety net before failing.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any) error {
	raw, err := c.generate(ctx, prompt, "json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}
	obj := extractJSONObject(raw)
	if obj == "" {
		return fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt, format string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  format,
		Options: map[string]any{"num_predict": c.numPredict, "temperature": 0.1},
	})
	if err != nil {
		return "", err
	}

	var text string
	err = c.gate.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		}
		var gr generateResponse
		if err := json.Unmarshal(respBody, &gr); err != nil {
			return fmt.Errorf("decode generate response: %w", err)
		}
		text = gr.Response
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// extractJSONObject returns the first balanced top-level {...} block in s,
// ignoring braces inside strings.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
