package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autovid-pipeline/01_idea"
	"autovid-pipeline/02_script"
	"autovid-pipeline/03_media"
	"autovid-pipeline/04_render"
	"autovid-pipeline/05_distribute"
	"autovid-pipeline/config"
	"autovid-pipeline/llm"
	"autovid-pipeline/types"
)

func TestRun_DevModeMakesNoNetworkCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unexpected call", http.StatusTeapot)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.DevMode = true
	cfg.Workspace.Root = t.TempDir()
	cfg.LLM.Endpoint = srv.URL
	cfg.LLM.APIKey = "k"
	cfg.Media.PexelsEndpoint = srv.URL
	cfg.Media.ElevenLabsEndpoint = srv.URL
	cfg.Render.Endpoint = srv.URL

	model := llm.New(cfg.LLM)
	o := New(cfg, Stages{
		Idea:       idea.New(cfg, model, nil),
		Script:     script.New(cfg, model),
		Media:      media.New(cfg, media.NewPexels(cfg.Media), media.NewElevenLabs(cfg.Media)),
		Render:     render.New(cfg, render.NewShotstack(cfg.Render)),
		Distribute: distribute.New(cfg, distribute.NewAuthorizer(cfg.Distribution)),
	}, nil)

	res := o.Run(context.Background(), types.PipelineRequest{Niche: "cooking", Upload: false})

	assert.Equal(t, types.StageDone, res.Stage)
	assert.Nil(t, res.Error)
	require.NotNil(t, res.FinalVideoURL)
	assert.Equal(t, cfg.Render.SampleVideoURL, *res.FinalVideoURL)
	assert.False(t, res.Uploaded)
	assert.Zero(t, hits.Load())
}

func TestRun_DevModeUploadRequested(t *testing.T) {
	cfg := config.Default()
	cfg.DevMode = true
	cfg.Workspace.Root = t.TempDir()

	o := New(cfg, Stages{
		Idea:       idea.New(cfg, nil, nil),
		Script:     script.New(cfg, nil),
		Media:      media.New(cfg, nil, nil),
		Render:     render.New(cfg, nil),
		Distribute: distribute.New(cfg, nil),
	}, nil)

	res := o.Run(context.Background(), types.PipelineRequest{Niche: "cooking", Upload: true})

	assert.Equal(t, types.StageDone, res.Stage)
	assert.False(t, res.Uploaded)
	require.NotNil(t, res.UploadError)
	assert.Equal(t, "distribution disabled in dev mode", *res.UploadError)
}
