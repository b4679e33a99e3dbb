// Package pipeline runs the idea, script, media, render and distribution stages in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autovid-pipeline/05_distribute"
	"autovid-pipeline/config"
	"autovid-pipeline/history"
	"autovid-pipeline/logging"
	"autovid-pipeline/metrics"
	"autovid-pipeline/types"
	"autovid-pipeline/workspace"
)

const stateFile = "pipeline_state.json"

// ErrInvalidRequest rejects requests that cannot start a run
var ErrInvalidRequest = errors.New("invalid pipeline request")

type IdeaStage interface {
	Generate(ctx context.Context, niche string) (types.VideoIdea, error)
	Suggest(ctx context.Context) (string, error)
}

type ScriptStage interface {
	Write(ctx context.Context, idea types.VideoIdea) types.Script
}

type MediaStage interface {
	Resolve(ctx context.Context, scenes []types.Scene, ws *workspace.Workspace) []types.SceneAsset
}

type RenderStage interface {
	Render(ctx context.Context, assets []types.SceneAsset, title string) types.RenderResult
}

type DistributionStage interface {
	Upload(ctx context.Context, ws *workspace.Workspace, videoURL, title, description string) types.UploadResult
}

// Recorder stores a summary of every finished run
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Stages groups the stage implementations the orchestrator drives
type Stages struct {
	Idea       IdeaStage
	Script     ScriptStage
	Media      MediaStage
	Render     RenderStage
	Distribute DistributionStage
}

// Orchestrator runs one pipeline per call
type Orchestrator struct {
	stages        Stages
	history       Recorder
	workspaceRoot string
	keepWorkspace bool
}

// New creates an Orchestrator. history may be nil.
func New(cfg *config.Config, stages Stages, history Recorder) *Orchestrator {
	return &Orchestrator{
		stages:        stages,
		history:       history,
		workspaceRoot: cfg.Workspace.Root,
		keepWorkspace: cfg.Workspace.Keep,
	}
}

// Suggest proposes a niche
func (o *Orchestrator) Suggest(ctx context.Context) (string, error) {
	return o.stages.Idea.Suggest(ctx)
}

// Run executes the stages linearly. Idea and Render failures halt the run;
// Script and Media substitute fallbacks; distribution only sets the upload fields.
func (o *Orchestrator) Run(ctx context.Context, req types.PipelineRequest) (result types.PipelineResult) {
	jobID := uuid.NewString()[:8]
	start := time.Now()

	logger := logging.Base().With().Str(logging.FieldJobID, jobID).Logger()
	if req.Verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}
	ctx = logging.WithContext(ctx, logger)

	result = types.PipelineResult{JobID: jobID}
	state := &types.PipelineState{
		RunID:     jobID,
		Niche:     req.Niche,
		StartedAt: start.UTC().Format(time.RFC3339),
	}

	logger.Info().Str("niche", req.Niche).Bool("upload", req.Upload).Msg("pipeline starting")

	ws, err := workspace.New(o.workspaceRoot, jobID)
	if err != nil {
		logger.Error().Err(err).Msg("workspace unavailable")
		return fail(result, types.StageIdea, err.Error())
	}

	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		state.Result = result
		o.finish(ctx, ws, state, time.Since(start))
	}()

	// ━━━ STAGE 1: Idea ━━━
	stageLogger(logger, types.StageIdea).Info().Msg("stage starting")
	ideaStart := time.Now()
	idea, err := o.stages.Idea.Generate(ctx, req.Niche)
	if err != nil {
		metrics.ObserveStage(types.StageIdea, metrics.OutcomeError, time.Since(ideaStart))
		logger.Error().Err(err).Msg("idea stage failed")
		return fail(result, types.StageIdea, err.Error())
	}
	metrics.ObserveStage(types.StageIdea, metrics.OutcomeOK, time.Since(ideaStart))
	state.Idea = &idea

	// ━━━ STAGE 2: Script ━━━
	stageLogger(logger, types.StageScript).Info().Msg("stage starting")
	script := o.stages.Script.Write(ctx, idea)
	state.Script = &script

	// ━━━ STAGE 3: Media ━━━
	stageLogger(logger, types.StageMedia).Info().Int("scenes", len(script.Scenes)).Msg("stage starting")
	assets := o.stages.Media.Resolve(ctx, script.Scenes, ws)
	state.Assets = assets

	// ━━━ STAGE 4: Render ━━━
	stageLogger(logger, types.StageRender).Info().Int("assets", len(assets)).Msg("stage starting")
	rendered := o.stages.Render.Render(ctx, assets, idea.Title)
	state.Render = &rendered
	if rendered.Failed() {
		logger.Error().Err(rendered.Err).Str("error", rendered.Error).Str("details", rendered.Details).Msg("render stage failed")
		msg := rendered.Error
		if rendered.Details != "" {
			msg += ": " + rendered.Details
		}
		return fail(result, types.StageRender, msg)
	}
	url := rendered.FinalVideoURL
	result.FinalVideoURL = &url

	// ━━━ STAGE 5: Distribute ━━━
	if req.Upload {
		stageLogger(logger, types.StageDistribute).Info().Msg("stage starting")
		up := o.stages.Distribute.Upload(ctx, ws, url, idea.Title, distribute.Description(idea))
		state.Upload = &up
		result.Uploaded = up.Uploaded
		if up.Error != "" {
			msg := up.Error
			result.UploadError = &msg
		}
	}

	result.Stage = types.StageDone
	logger.Info().Str("url", url).Bool("uploaded", result.Uploaded).Dur("took", time.Since(start)).Msg("pipeline complete")
	return result
}

// finish persists the state snapshot, prunes scratch files and records history
func (o *Orchestrator) finish(ctx context.Context, ws *workspace.Workspace, state *types.PipelineState, took time.Duration) {
	logger := logging.FromContext(ctx)
	res := state.Result

	outcome := metrics.OutcomeOK
	if res.Error != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveStage("pipeline", outcome, took)

	if !o.keepWorkspace {
		if err := ws.Prune(stateFile); err != nil {
			logger.Warn().Err(err).Msg("could not prune workspace")
		}
	}
	if err := ws.SaveJSON(stateFile, state); err != nil {
		logger.Warn().Err(err).Msg("could not save pipeline state")
	}

	if o.history == nil {
		return
	}
	run := history.Run{
		JobID:     res.JobID,
		Niche:     state.Niche,
		Stage:     res.Stage,
		Uploaded:  res.Uploaded,
		StartedAt: time.Now().Add(-took),
		Duration:  took,
	}
	if state.Idea != nil {
		run.Title = state.Idea.Title
	}
	if state.Script != nil {
		run.Scenes = len(state.Script.Scenes)
	}
	if res.FinalVideoURL != nil {
		run.FinalVideoURL = *res.FinalVideoURL
	}
	if state.Upload != nil {
		run.VideoID = state.Upload.VideoID
	}
	if res.Error != nil {
		run.Error = *res.Error
	}
	// the request context may already be cancelled; the record should still land
	if err := o.history.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Msg("could not record run history")
	}
}

func fail(result types.PipelineResult, stage, msg string) types.PipelineResult {
	result.Stage = stage
	result.Error = &msg
	result.FinalVideoURL = nil
	result.Uploaded = false
	return result
}

func stageLogger(l zerolog.Logger, stage string) *zerolog.Logger {
	sl := l.With().Str(logging.FieldStage, stage).Logger()
	return &sl
}

// Validate checks a request before a run is started
func Validate(req types.PipelineRequest) error {
	if len(req.Niche) > 200 {
		return fmt.Errorf("%w: niche longer than 200 characters", ErrInvalidRequest)
	}
	return nil
}
