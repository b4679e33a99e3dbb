// Package media resolves stock footage and narration audio for every scene.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
	"autovid-pipeline/metrics"
	"autovid-pipeline/types"
	"autovid-pipeline/workspace"
)

var (
	devAudio         = []byte("ID3\x04\x00\x00\x00\x00\x00\x0Fsimulated")
	placeholderAudio = []byte("ID3\x04\x00\x00\x00\x00\x00\x0Fplaceholder")
)

// VideoSearcher finds a stock clip URL for a query
type VideoSearcher interface {
	SearchVideo(ctx context.Context, query string) (string, error)
}

// Speaker turns narration into audio bytes
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Resolver attaches a video URL and an audio file to each scene
type Resolver struct {
	videos           VideoSearcher
	voice            Speaker
	limiter          *rate.Limiter
	devMode          bool
	allowPlaceholder bool
	placeholderVideo string
	concurrency      int
}

// New creates a Resolver. videos and voice are unused in dev mode and may be nil.
func New(cfg *config.Config, videos VideoSearcher, voice Speaker) *Resolver {
	concurrency := cfg.Media.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	rps := cfg.Media.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Resolver{
		videos:           videos,
		voice:            voice,
		limiter:          rate.NewLimiter(rate.Limit(rps), 1),
		devMode:          cfg.DevMode,
		allowPlaceholder: cfg.AllowPlaceholder,
		placeholderVideo: cfg.Media.PlaceholderVideo,
		concurrency:      concurrency,
	}
}

// Resolve returns assets in scene order. Scenes whose media cannot be resolved are dropped.
func (r *Resolver) Resolve(ctx context.Context, scenes []types.Scene, ws *workspace.Workspace) []types.SceneAsset {
	logger := logging.Component(ctx, "media")
	start := time.Now()

	results := make([]*types.SceneAsset, len(scenes))
	if r.concurrency == 1 {
		for i, scene := range scenes {
			results[i] = r.resolveScene(ctx, i, scene, ws)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, scene := range scenes {
			i, scene := i, scene
			g.Go(func() error {
				results[i] = r.resolveScene(gctx, i, scene, ws)
				return nil
			})
		}
		_ = g.Wait()
	}

	assets := make([]types.SceneAsset, 0, len(scenes))
	placeholders := 0
	for _, a := range results {
		if a == nil {
			continue
		}
		if a.VideoPlaceholder || a.AudioPlaceholder {
			placeholders++
		}
		assets = append(assets, *a)
	}

	outcome := metrics.OutcomeOK
	switch {
	case r.devMode:
		outcome = metrics.OutcomeSkipped
	case len(assets) < len(scenes):
		outcome = metrics.OutcomeError
	case placeholders > 0:
		outcome = metrics.OutcomePlaceholder
	}
	metrics.ObserveStage(types.StageMedia, outcome, time.Since(start))

	logger.Info().
		Int("scenes", len(scenes)).
		Int("resolved", len(assets)).
		Int("placeholders", placeholders).
		Msg("media resolved")
	return assets
}

func (r *Resolver) resolveScene(ctx context.Context, index int, scene types.Scene, ws *workspace.Workspace) *types.SceneAsset {
	logger := logging.Component(ctx, "media").With().Int(logging.FieldScene, index).Logger()
	asset := &types.SceneAsset{Scene: scene, Index: index}
	audioName := fmt.Sprintf("audio_scene_%d.mp3", index)

	if r.devMode {
		path, err := ws.WriteFile(audioName, devAudio)
		if err != nil {
			logger.Error().Err(err).Msg("write dev audio")
			metrics.SceneDropped()
			return nil
		}
		asset.VideoURL = r.placeholderVideo
		asset.AudioPath = path
		asset.VideoPlaceholder = true
		asset.AudioPlaceholder = true
		return asset
	}

	query := simplifyQuery(scene.Visual)
	videoURL, err := r.searchVideo(ctx, query)
	if err != nil {
		if !r.allowPlaceholder {
			logger.Warn().Err(err).Str(logging.FieldProvider, "pexels").Str("query", query).Msg("no video, dropping scene")
			metrics.SceneDropped()
			return nil
		}
		logger.Warn().Err(err).Str(logging.FieldProvider, "pexels").Str("query", query).Msg("no video, using placeholder")
		videoURL = r.placeholderVideo
		asset.VideoPlaceholder = true
	}
	asset.VideoURL = videoURL

	audio, err := r.synthesize(ctx, scene.Narration)
	if err != nil {
		if !r.allowPlaceholder {
			logger.Warn().Err(err).Str(logging.FieldProvider, "elevenlabs").Msg("tts failed, dropping scene")
			metrics.SceneDropped()
			return nil
		}
		logger.Warn().Err(err).Str(logging.FieldProvider, "elevenlabs").Msg("tts failed, using placeholder audio")
		audio = placeholderAudio
		asset.AudioPlaceholder = true
	}

	path, err := ws.WriteFile(audioName, audio)
	if err != nil {
		logger.Error().Err(err).Msg("write audio")
		metrics.SceneDropped()
		return nil
	}
	asset.AudioPath = path

	logger.Debug().Str("video", asset.VideoURL).Str("audio", path).Msg("scene assets ready")
	return asset
}

func (r *Resolver) searchVideo(ctx context.Context, query string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.videos.SearchVideo(ctx, query)
}

func (r *Resolver) synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.voice.Synthesize(ctx, text)
}

// simplifyQuery strips the stub visual prefixes and keeps the first five words
func simplifyQuery(visual string) string {
	q := strings.ReplaceAll(visual, "B-roll illustrating:", "")
	q = strings.ReplaceAll(q, "Dynamic macro shot related to", "")
	words := strings.Fields(q)
	if len(words) > 5 {
		words = words[:5]
	}
	if len(words) == 0 {
		return "nature"
	}
	return strings.Join(words, " ")
}
