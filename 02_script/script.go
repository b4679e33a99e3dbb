package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autovid-pipeline/config"
	"autovid-pipeline/llm"
	"autovid-pipeline/logging"
	"autovid-pipeline/metrics"
	"autovid-pipeline/types"
)

const (
	hookVisualPrefix  = "Dynamic macro shot related to "
	pointVisualPrefix = "B-roll illustrating: "
	maxStubPoints     = 4
	defaultCTA        = "Follow for more!"
)

const promptTemplate = `You are an expert short-form video scriptwriter specialized in viral, engaging videos for Shorts, Reels and TikTok.
Write a complete video script based on the following concept:

Concept Title: %s
Hook: %s
Key Points: %s
Call to Action: %s

Instructions:
1. Create exactly 5-7 concise, engaging scenes.
2. Scene 1 must start strongly with the provided hook.
3. The middle scenes must clearly and creatively present each key point.
4. The last scene must end energetically with the provided call to action.
5. For each scene provide a "visual" (a vivid prompt for a stock footage search) and a "narration" (voiceover text, max 15 words).

Respond only with a single minified JSON object with one key "scenes", a list of scene objects. No markdown, no other text.`

// Model is the language model surface the writer needs
type Model interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Writer turns an idea into a scene script
type Writer struct {
	model   Model
	devMode bool
}

// New creates a Writer
func New(cfg *config.Config, model Model) *Writer {
	return &Writer{model: model, devMode: cfg.DevMode}
}

type scriptJSON struct {
	Scenes []sceneJSON `json:"scenes"`
}

type sceneJSON struct {
	Visual    string `json:"visual"`
	Narration string `json:"narration"`
}

// Write never fails: any model problem yields the stub script tagged Fallback.
func (w *Writer) Write(ctx context.Context, idea types.VideoIdea) types.Script {
	logger := logging.Component(ctx, "script")
	start := time.Now()

	if w.devMode {
		logger.Debug().Msg("dev mode, stub script")
		metrics.ObserveStage(types.StageScript, metrics.OutcomeFallback, time.Since(start))
		return Stub(idea)
	}

	script, err := w.generate(ctx, idea)
	if err != nil {
		logger.Warn().Err(err).Msg("script generation failed, using stub")
		metrics.ObserveStage(types.StageScript, metrics.OutcomeFallback, time.Since(start))
		return Stub(idea)
	}

	logger.Info().Int("scenes", len(script.Scenes)).Msg("script ready")
	metrics.ObserveStage(types.StageScript, metrics.OutcomeOK, time.Since(start))
	return script
}

func (w *Writer) generate(ctx context.Context, idea types.VideoIdea) (types.Script, error) {
	raw, err := w.model.GenerateJSON(ctx, buildPrompt(idea))
	if err != nil {
		return types.Script{}, err
	}

	var parsed scriptJSON
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		return types.Script{}, fmt.Errorf("parse script JSON: %w", err)
	}
	if len(parsed.Scenes) == 0 {
		return types.Script{}, errors.New("script has no scenes")
	}

	script := types.Script{Scenes: make([]types.Scene, 0, len(parsed.Scenes))}
	for i, s := range parsed.Scenes {
		narration := strings.TrimSpace(s.Narration)
		if narration == "" {
			return types.Script{}, fmt.Errorf("scene %d has no narration", i+1)
		}
		script.Scenes = append(script.Scenes, types.Scene{
			Visual:    strings.TrimSpace(s.Visual),
			Narration: narration,
		})
	}
	return script, nil
}

func buildPrompt(idea types.VideoIdea) string {
	return fmt.Sprintf(promptTemplate, idea.Title, idea.Hook, strings.Join(idea.Points, ", "), idea.CTA)
}

// Stub builds a script straight from the idea: hook, up to four points, then the CTA.
func Stub(idea types.VideoIdea) types.Script {
	scenes := []types.Scene{{
		Visual:    hookVisualPrefix + idea.Title,
		Narration: orDefault(idea.Hook, idea.Title),
	}}

	points := idea.Points
	if len(points) > maxStubPoints {
		points = points[:maxStubPoints]
	}
	for _, p := range points {
		scenes = append(scenes, types.Scene{Visual: pointVisualPrefix + p, Narration: p})
	}

	scenes = append(scenes, types.Scene{
		Visual:    "Energetic closing shot, " + idea.Title,
		Narration: orDefault(idea.CTA, defaultCTA),
	})
	return types.Script{Scenes: scenes, Fallback: true}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
