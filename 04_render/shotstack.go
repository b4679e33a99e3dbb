package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"autovid-pipeline/config"
	"autovid-pipeline/metrics"
)

// Shotstack talks to the Shotstack Edit API
type Shotstack struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewShotstack creates a client for {endpoint}/{stage}
func NewShotstack(cfg config.RenderConfig) *Shotstack {
	return &Shotstack{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.Trim(cfg.Stage, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// StatusError is a non-2xx answer from Shotstack
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shotstack HTTP %d: %s", e.Status, e.Body)
}

// Status is the state of one render job
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

type envelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response Status `json:"response"`
}

// Submit queues an edit and returns the render id
func (s *Shotstack) Submit(ctx context.Context, edit Edit) (id string, err error) {
	defer func() { metrics.ProviderRequest("shotstack", err) }()

	body, err := json.Marshal(edit)
	if err != nil {
		return "", fmt.Errorf("marshal edit: %w", err)
	}
	var env envelope
	if err := s.do(ctx, http.MethodPost, "/render", body, &env); err != nil {
		return "", err
	}
	if env.Response.ID == "" {
		return "", errors.New("shotstack accepted the render without an id")
	}
	return env.Response.ID, nil
}

// Status fetches the state of render id
func (s *Shotstack) Status(ctx context.Context, id string) (st Status, err error) {
	defer func() { metrics.ProviderRequest("shotstack", err) }()

	var env envelope
	if err := s.do(ctx, http.MethodGet, "/render/"+id, nil, &env); err != nil {
		return Status{}, err
	}
	return env.Response, nil
}

// Ping probes the stage status endpoint and returns the HTTP status
func (s *Shotstack) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/status", nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Shotstack) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shotstack request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read shotstack response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: truncate(string(data), 400)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse shotstack response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
