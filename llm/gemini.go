package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"autovid-pipeline/config"
	"autovid-pipeline/metrics"
)

const provider = "gemini"

// Client calls the Gemini generateContent API
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client from configuration
func New(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model is the configured model name
func (c *Client) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateJSON asks the model for a JSON document and returns its raw text
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "application/json")
}

// GenerateText asks the model for plain text
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "")
}

func (c *Client) generate(ctx context.Context, prompt, mime string) (text string, err error) {
	const op = "generateContent"
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	defer func() { metrics.ProviderRequest(provider, err) }()

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if mime != "" {
		reqBody.GenerationConfig = &generationConfig{ResponseMimeType: mime}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Sentinel: ErrUpstream, Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Sentinel: ErrUpstream, Operation: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &Error{Sentinel: ErrUpstream, Operation: op, Status: resp.StatusCode, Body: snippet(respBytes)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", &Error{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	if parsed.Error != nil {
		return "", &Error{Sentinel: ErrUpstream, Operation: op, Status: parsed.Error.Code, Body: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Sentinel: ErrBadResponse, Operation: op, Body: "no candidates"}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// ListModels returns the model names available to the configured key
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	const op = "listModels"
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	status, body, err := c.get(ctx, c.endpoint+"/models")
	if err != nil {
		return nil, &Error{Sentinel: ErrUpstream, Operation: op, Err: err}
	}
	if status >= http.StatusBadRequest {
		return nil, &Error{Sentinel: ErrUpstream, Operation: op, Status: status, Body: snippet(body)}
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		if m.Name != "" {
			names = append(names, ShortModelName(m.Name))
		}
	}
	return names, nil
}

// Ping GETs models/{model} and reports the raw status and a body prefix
func (c *Client) Ping(ctx context.Context, model string) (int, string, error) {
	if c.apiKey == "" {
		return 0, "", ErrNotConfigured
	}
	if model == "" {
		model = c.model
	}
	status, body, err := c.get(ctx, fmt.Sprintf("%s/models/%s", c.endpoint, url.PathEscape(model)))
	if err != nil {
		return 0, "", &Error{Sentinel: ErrUpstream, Operation: "ping", Err: err}
	}
	return status, truncate(string(body), 400), nil
}

func (c *Client) get(ctx context.Context, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// ShortModelName strips the resource prefix from "models/gemini-x".
func ShortModelName(name string) string {
	if i := strings.LastIndex(name, "models/"); i >= 0 {
		return name[i+len("models/"):]
	}
	return name
}

// CleanJSON strips markdown fences if the model wraps its answer in ```json ... ```
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(b []byte) string {
	return truncate(strings.TrimSpace(string(b)), 1024)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
