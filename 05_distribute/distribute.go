// Package distribute downloads the rendered video and publishes it to YouTube.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
	"autovid-pipeline/metrics"
	"autovid-pipeline/types"
	"autovid-pipeline/workspace"
)

const downloadName = "final_video_for_upload.mp4"

var (
	// ErrDevMode is reported when distribution is skipped in dev mode
	ErrDevMode  = errors.New("distribution disabled in dev mode")
	ErrDownload = errors.New("video download failed")
	ErrAuth     = errors.New("youtube auth failed")
)

// ClientProvider hands out an authenticated HTTP client
type ClientProvider interface {
	Client(ctx context.Context) (*http.Client, error)
}

// inserter performs videos.insert
type inserter func(ctx context.Context, client *http.Client, video *youtube.Video, media io.Reader) (string, error)

// Uploader publishes finished videos
type Uploader struct {
	cfg        config.DistributionConfig
	devMode    bool
	auth       ClientProvider
	downloader *downloader
	insert     inserter
}

// New creates an Uploader. auth is unused in dev mode and may be nil.
func New(cfg *config.Config, auth ClientProvider) *Uploader {
	return &Uploader{
		cfg:        cfg.Distribution,
		devMode:    cfg.DevMode,
		auth:       auth,
		downloader: &downloader{httpClient: &http.Client{Timeout: 10 * time.Minute}},
		insert:     insertVideo,
	}
}

// Upload downloads videoURL into ws and uploads it. Failures are returned in the result, never raised.
func (u *Uploader) Upload(ctx context.Context, ws *workspace.Workspace, videoURL, title, description string) (res types.UploadResult) {
	logger := logging.Component(ctx, "distribute")
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case u.devMode:
			outcome = metrics.OutcomeSkipped
		case !res.Uploaded:
			outcome = metrics.OutcomeError
		}
		metrics.ObserveStage(types.StageDistribute, outcome, time.Since(start))
	}()

	if u.devMode {
		logger.Info().Msg("dev mode, skipping upload")
		return types.UploadResult{Error: ErrDevMode.Error()}
	}

	// Step 1: download
	local := ws.Path(downloadName)
	defer func() {
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", local).Msg("could not remove downloaded video")
		}
	}()
	size, err := u.downloader.download(ctx, videoURL, local)
	if err != nil {
		logger.Error().Err(err).Str("url", videoURL).Msg("download failed")
		return types.UploadResult{Error: err.Error()}
	}
	logger.Info().Float64("size_mb", float64(size)/1024/1024).Msg("video downloaded")

	// Step 2: authenticate
	client, err := u.auth.Client(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("youtube auth failed")
		return types.UploadResult{Error: fmt.Errorf("%w: %w", ErrAuth, err).Error()}
	}

	// Step 3: upload
	f, err := os.Open(local)
	if err != nil {
		return types.UploadResult{Error: fmt.Sprintf("open video file: %v", err)}
	}
	defer f.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       TruncateTitle(title, u.cfg.TitleMaxChars),
			Description: description,
			Tags:        u.cfg.Tags,
			CategoryId:  u.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.cfg.Privacy,
			SelfDeclaredMadeForKids: u.cfg.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	logger.Info().Str("title", video.Snippet.Title).Msg("uploading")
	id, err := u.insert(ctx, client, video, f)
	metrics.ProviderRequest("youtube", err)
	if err != nil {
		logger.Error().Err(err).Msg("youtube upload failed")
		return types.UploadResult{Error: fmt.Sprintf("youtube upload: %v", err)}
	}

	res = types.UploadResult{
		Uploaded: true,
		VideoID:  id,
		VideoURL: "https://www.youtube.com/watch?v=" + id,
	}
	logger.Info().Str("video_id", id).Str("url", res.VideoURL).Msg("uploaded")
	return res
}

func insertVideo(ctx context.Context, client *http.Client, video *youtube.Video, media io.Reader) (string, error) {
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return uploaded.Id, nil
}
