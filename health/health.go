// Package health reports provider readiness for the API's dependency endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"autovid-pipeline/logging"
)

// checkTimeout bounds one live provider probe
const checkTimeout = 10 * time.Second

// Result is the readiness of one provider
type Result struct {
	OK          bool     `json:"ok"`
	Message     string   `json:"message"`
	Model       *string  `json:"model,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Checker inspects one provider. live allows a network probe.
type Checker interface {
	Name() string
	Check(ctx context.Context, live bool) Result
}

// Report is the dependency report; it serializes as a flat object keyed by provider.
type Report struct {
	DevMode bool
	Checks  map[string]Result
}

func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Checks)+1)
	out["dev_mode"] = r.DevMode
	for name, res := range r.Checks {
		out[name] = res
	}
	return json.Marshal(out)
}

// Manager runs the registered checkers
type Manager struct {
	devMode  bool
	checkers []Checker
}

// NewManager creates a Manager
func NewManager(devMode bool) *Manager {
	return &Manager{devMode: devMode}
}

// RegisterChecker adds a checker
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Deps runs every checker concurrently
func (m *Manager) Deps(ctx context.Context, live bool) Report {
	report := Report{DevMode: m.devMode, Checks: make(map[string]Result, len(m.checkers))}

	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range m.checkers {
		c := c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			res := c.Check(cctx, live)
			mu.Lock()
			report.Checks[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// ServeHealth answers the liveness probe
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, map[string]string{"status": "ok"})
}

// ServeDeps answers the dependency report; ?live=true enables provider probes
func (m *Manager) ServeDeps(w http.ResponseWriter, r *http.Request) {
	logger := logging.Component(r.Context(), "health")
	live, _ := strconv.ParseBool(r.URL.Query().Get("live"))

	report := m.Deps(r.Context(), live)
	writeJSON(r.Context(), w, report)

	logger.Debug().
		Str(logging.FieldEvent, "health.deps").
		Bool("live", live).
		Int("checks", len(report.Checks)).
		Msg("dependency check performed")
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.Component(ctx, "health")
		logger.Error().Err(err).Msg("failed to encode health response")
	}
}

// Prober returns the HTTP status of a cheap provider request
type Prober func(ctx context.Context) (int, error)

// ProviderChecker covers the key-plus-probe providers
type ProviderChecker struct {
	name   string
	keyEnv string
	hasKey bool
	probe  Prober
	// stage is reported for the render provider
	stage string
	// tolerant treats a 404 or an unreachable probe as healthy
	tolerant bool
}

// NewProviderChecker creates a checker for a provider whose key is read from keyEnv
func NewProviderChecker(name, keyEnv, key string, probe Prober) *ProviderChecker {
	return &ProviderChecker{name: name, keyEnv: keyEnv, hasKey: key != "", probe: probe}
}

// WithStage reports stage and tolerates probe failures
func (p *ProviderChecker) WithStage(stage string) *ProviderChecker {
	p.stage = stage
	p.tolerant = true
	return p
}

func (p *ProviderChecker) Name() string { return p.name }

func (p *ProviderChecker) Check(ctx context.Context, live bool) Result {
	res := Result{Stage: p.stage}
	if !p.hasKey {
		res.Message = p.keyEnv + " missing"
		return res
	}
	if !live {
		res.OK = true
		res.Message = "Key present"
		return res
	}

	status, err := p.probe(ctx)
	switch {
	case err != nil && p.tolerant:
		res.OK = true
		res.Message = fmt.Sprintf("Key present; ping failed: %v", err)
	case err != nil:
		res.Message = err.Error()
	case status == http.StatusNotFound && p.tolerant:
		res.OK = true
		res.Message = "Status endpoint 404 (tolerated)"
	default:
		res.OK = status >= 200 && status < 400
		res.Message = fmt.Sprintf("HTTP %d", status)
	}
	return res
}

// GeminiClient is the model API surface the Gemini check uses
type GeminiClient interface {
	Model() string
	Ping(ctx context.Context, model string) (int, string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// GeminiChecker checks the key and, live, that the configured model exists
type GeminiChecker struct {
	client GeminiClient
	hasKey bool
}

// NewGeminiChecker creates a GeminiChecker
func NewGeminiChecker(client GeminiClient, key string) *GeminiChecker {
	return &GeminiChecker{client: client, hasKey: key != ""}
}

func (g *GeminiChecker) Name() string { return "gemini" }

func (g *GeminiChecker) Check(ctx context.Context, live bool) Result {
	model := g.client.Model()
	res := Result{Model: &model}
	if !g.hasKey {
		res.Message = "GEMINI_API_KEY missing"
		return res
	}
	if !live {
		res.OK = true
		res.Message = "Key present"
		return res
	}

	status, _, err := g.client.Ping(ctx, model)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	if status == http.StatusNotFound {
		res.Message = fmt.Sprintf("Model %s 404", model)
		res.Suggestions = g.suggestions(ctx)
		return res
	}
	res.OK = status >= 200 && status < 400
	res.Message = fmt.Sprintf("HTTP %d", status)
	return res
}

// suggestions lists current 2.x models from the first ten the key can see
func (g *GeminiChecker) suggestions(ctx context.Context) []string {
	names, err := g.client.ListModels(ctx)
	if err != nil {
		return []string{}
	}
	if len(names) > 10 {
		names = names[:10]
	}
	out := []string{}
	for _, n := range names {
		if strings.HasPrefix(n, "gemini-2.5") || strings.HasPrefix(n, "gemini-2.0") {
			out = append(out, n)
		}
	}
	return out
}
