// Package render composites scene assets into the final video through Shotstack.
package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
	"autovid-pipeline/metrics"
	"autovid-pipeline/types"
)

var (
	ErrNoScenes      = errors.New("no scenes to render")
	ErrRenderTimeout = errors.New("render timed out")
	ErrRenderFailed  = errors.New("render failed")
)

// maxPollErrors is how many consecutive status lookups may fail before giving up
const maxPollErrors = 3

// API is the render service surface
type API interface {
	Submit(ctx context.Context, edit Edit) (string, error)
	Status(ctx context.Context, id string) (Status, error)
}

// Renderer submits a timeline and waits for the finished video
type Renderer struct {
	api           API
	devMode       bool
	fast          bool
	pollInterval  time.Duration
	maxPolls      int
	soundtrack    string
	aspectRatio   string
	publicBaseURL string
	workspaceRoot string
	sampleVideo   string
}

// New creates a Renderer. api is unused in dev mode and may be nil.
func New(cfg *config.Config, api API) *Renderer {
	return &Renderer{
		api:           api,
		devMode:       cfg.DevMode,
		fast:          cfg.Fast,
		pollInterval:  cfg.PollInterval(),
		maxPolls:      cfg.Render.MaxPolls,
		soundtrack:    cfg.Render.Soundtrack,
		aspectRatio:   cfg.Render.AspectRatio,
		publicBaseURL: cfg.Render.PublicBaseURL,
		workspaceRoot: cfg.Workspace.Root,
		sampleVideo:   cfg.Render.SampleVideoURL,
	}
}

// Render returns the final video URL, or a result with Error set. It never panics on provider input.
func (r *Renderer) Render(ctx context.Context, assets []types.SceneAsset, title string) (res types.RenderResult) {
	logger := logging.Component(ctx, "render")
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case res.Failed():
			outcome = metrics.OutcomeError
		case r.devMode:
			outcome = metrics.OutcomeSkipped
		}
		metrics.ObserveStage(types.StageRender, outcome, time.Since(start))
	}()

	if r.devMode {
		logger.Debug().Msg("dev mode, returning sample video")
		return types.RenderResult{FinalVideoURL: r.sampleVideo, RenderID: "dev"}
	}
	if len(assets) == 0 {
		return failure(ErrNoScenes.Error(), "", ErrNoScenes)
	}

	// Step 1: build and submit the timeline
	edit := buildEdit(assets, timelineOptions{
		Fast:        r.fast,
		Soundtrack:  r.soundtrack,
		AspectRatio: r.aspectRatio,
		AudioSrc:    r.audioSrc,
	})
	id, err := r.api.Submit(ctx, edit)
	if err != nil {
		logger.Error().Err(err).Msg("render submission failed")
		return failure("render submission failed", err.Error(), err)
	}
	logger.Info().Str("render_id", id).Str("title", title).Int("scenes", len(edit.Timeline.Tracks[0].Clips)).Msg("render queued")

	// Step 2: poll until done, failed, cancelled or out of polls
	res = r.poll(ctx, id)
	res.RenderID = id
	if res.Failed() {
		logger.Error().Str("render_id", id).Str("error", res.Error).Str("details", res.Details).Msg("render did not finish")
	} else {
		logger.Info().Str("render_id", id).Str("url", res.FinalVideoURL).Dur("took", time.Since(start)).Msg("render done")
	}
	return res
}

func (r *Renderer) poll(ctx context.Context, id string) types.RenderResult {
	logger := logging.Component(ctx, "render")
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	pollErrors := 0
	for polls := 0; polls < r.maxPolls; polls++ {
		select {
		case <-ctx.Done():
			return failure("render cancelled", ctx.Err().Error(), ctx.Err())
		case <-timer.C:
		}
		timer.Reset(r.pollInterval)

		st, err := r.api.Status(ctx, id)
		if err != nil {
			pollErrors++
			metrics.RenderPoll("error")
			logger.Warn().Err(err).Int("consecutive", pollErrors).Msg("render status lookup failed")
			if pollErrors >= maxPollErrors {
				return failure("render status unavailable", err.Error(), err)
			}
			continue
		}
		pollErrors = 0
		metrics.RenderPoll(st.Status)
		logger.Debug().Str(logging.FieldStatus, st.Status).Int("poll", polls+1).Msg("render status")

		switch st.Status {
		case "done":
			if st.URL == "" {
				return failure(ErrRenderFailed.Error(), "render finished without a url", ErrRenderFailed)
			}
			return types.RenderResult{FinalVideoURL: st.URL}
		case "failed", "cancelled":
			details := st.Error
			if details == "" {
				details = "unknown render failure"
			}
			return failure(ErrRenderFailed.Error(), details, ErrRenderFailed)
		}
	}
	return failure(ErrRenderTimeout.Error(), fmt.Sprintf("still pending after %d polls", r.maxPolls), ErrRenderTimeout)
}

// audioSrc exposes workspace audio through the API's file route when a public URL is configured
func (r *Renderer) audioSrc(path string) string {
	if r.publicBaseURL == "" {
		return path
	}
	rel, err := filepath.Rel(r.workspaceRoot, path)
	if err != nil {
		return path
	}
	return r.publicBaseURL + "/files/" + filepath.ToSlash(rel)
}

func failure(msg, details string, err error) types.RenderResult {
	return types.RenderResult{Error: msg, Details: details, Err: err}
}
