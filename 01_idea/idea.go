package idea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"autovid-pipeline/config"
	"autovid-pipeline/llm"
	"autovid-pipeline/logging"
	"autovid-pipeline/types"
)

// ErrGeneration marks every failure of the idea stage
var ErrGeneration = errors.New("idea generation failed")

// devNiches are picked from when suggesting without a model
var devNiches = []string{
	"deep sea creatures",
	"ancient engineering",
	"space weather",
	"urban wildlife",
	"weird physics",
	"forgotten inventions",
}

// Model is the language model surface the stage needs
type Model interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// TitleSource supplies trending titles used as inspiration
type TitleSource interface {
	Titles(ctx context.Context) ([]string, error)
}

// Generator turns a niche into a VideoIdea
type Generator struct {
	model   Model
	trends  TitleSource
	devMode bool
	now     func() time.Time
}

// New creates a Generator. trends may be nil.
func New(cfg *config.Config, model Model, trends TitleSource) *Generator {
	return &Generator{model: model, trends: trends, devMode: cfg.DevMode, now: time.Now}
}

type ideaJSON struct {
	Title  string   `json:"title"`
	Hook   string   `json:"hook"`
	Points []string `json:"points"`
	CTA    string   `json:"cta"`
}

// Generate produces an idea for niche. An empty niche is replaced by a suggestion first.
func (g *Generator) Generate(ctx context.Context, niche string) (types.VideoIdea, error) {
	logger := logging.Component(ctx, "idea")

	niche = strings.TrimSpace(niche)
	if niche == "" {
		suggested, err := g.Suggest(ctx)
		if err != nil {
			return types.VideoIdea{}, err
		}
		logger.Info().Str("niche", suggested).Msg("no niche given, using suggestion")
		niche = suggested
	}

	if g.devMode {
		logger.Debug().Str("niche", niche).Msg("dev mode, stub idea")
		return stubIdea(niche), nil
	}

	raw, err := g.model.GenerateJSON(ctx, buildPrompt(niche))
	if err != nil {
		return types.VideoIdea{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var parsed ideaJSON
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		return types.VideoIdea{}, fmt.Errorf("%w: parse idea JSON: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(parsed.Title) == "" || strings.TrimSpace(parsed.Hook) == "" {
		return types.VideoIdea{}, fmt.Errorf("%w: idea is missing title or hook", ErrGeneration)
	}

	idea := types.VideoIdea{
		Title:  strings.TrimSpace(parsed.Title),
		Hook:   strings.TrimSpace(parsed.Hook),
		CTA:    strings.TrimSpace(parsed.CTA),
		Points: make([]string, 0, len(parsed.Points)),
	}
	for _, p := range parsed.Points {
		if p = strings.TrimSpace(p); p != "" {
			idea.Points = append(idea.Points, p)
		}
	}

	logger.Info().Str("title", idea.Title).Int("points", len(idea.Points)).Msg("idea ready")
	return idea, nil
}

// Suggest asks the model for one short niche phrase
func (g *Generator) Suggest(ctx context.Context) (string, error) {
	logger := logging.Component(ctx, "idea")

	// dev mode makes no outbound calls, trends included
	if g.devMode {
		return pickDevNiche(g.now()), nil
	}

	var seeds []string
	if g.trends != nil {
		titles, err := g.trends.Titles(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("trends unavailable, suggesting without them")
		} else {
			seeds = titles
		}
	}

	out, err := g.model.GenerateText(ctx, buildSuggestPrompt(seeds))
	if err != nil {
		return "", fmt.Errorf("%w: suggest: %w", ErrGeneration, err)
	}
	niche := strings.Trim(strings.TrimSpace(firstLine(out)), `"'.`)
	if niche == "" {
		return "", fmt.Errorf("%w: model returned an empty suggestion", ErrGeneration)
	}
	return niche, nil
}

func buildPrompt(niche string) string {
	var sb strings.Builder
	sb.WriteString("You are a creative strategist for viral short-form vertical videos (Shorts, Reels, TikTok).\n")
	sb.WriteString(fmt.Sprintf("Come up with one video concept for the niche: %s\n\n", niche))
	sb.WriteString("Return a single JSON object with the keys:\n")
	sb.WriteString(`- "title": a catchy title under 80 characters` + "\n")
	sb.WriteString(`- "hook": the opening line that stops the scroll` + "\n")
	sb.WriteString(`- "points": 3 to 5 short key points the video covers` + "\n")
	sb.WriteString(`- "cta": a one-line call to action` + "\n\n")
	sb.WriteString("Respond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}

func buildSuggestPrompt(seeds []string) string {
	var sb strings.Builder
	sb.WriteString("Suggest one specific, engaging niche for a short-form educational video channel.\n")
	if len(seeds) > 0 {
		sb.WriteString("For inspiration, these posts are trending right now:\n")
		for _, s := range seeds {
			sb.WriteString("- " + s + "\n")
		}
	}
	sb.WriteString("Answer with the niche only, 2 to 6 words, no punctuation, no explanation.")
	return sb.String()
}

func stubIdea(niche string) types.VideoIdea {
	return types.VideoIdea{
		Title: fmt.Sprintf("3 Surprising Facts About %s", titleCase(niche)),
		Hook:  fmt.Sprintf("You have been thinking about %s all wrong.", niche),
		Points: []string{
			fmt.Sprintf("Where %s really comes from", niche),
			fmt.Sprintf("The part of %s nobody talks about", niche),
			fmt.Sprintf("What %s means for you", niche),
		},
		CTA: "Follow for more quick facts!",
	}
}

// pickDevNiche picks the same niche for every run on one UTC day
func pickDevNiche(now time.Time) string {
	h := fnv.New32a()
	h.Write([]byte(now.UTC().Format(time.DateOnly)))
	return devNiches[int(h.Sum32()%uint32(len(devNiches)))]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
