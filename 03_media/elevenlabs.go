package media

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

// ElevenLabs synthesizes narration audio
type ElevenLabs struct {
	endpoint        string
	apiKey          string
	voiceID         string
	model           string
	stability       float64
	similarityBoost float64
	httpClient      *http.Client
}

// NewElevenLabs creates an ElevenLabs client
func NewElevenLabs(cfg config.MediaConfig) *ElevenLabs {
	return &ElevenLabs{
		endpoint:        strings.TrimRight(cfg.ElevenLabsEndpoint, "/"),
		apiKey:          cfg.ElevenLabsAPIKey,
		voiceID:         cfg.VoiceID,
		model:           cfg.TTSModel,
		stability:       cfg.Stability,
		similarityBoost: cfg.SimilarityBoost,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 bytes for text
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (audio []byte, err error) {
	defer func() { metrics.ProviderRequest("elevenlabs", err) }()

	payload, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/v1/text-to-speech/"+e.voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs HTTP %d: %s", resp.StatusCode, truncate(string(body), 300))
	}
	if len(body) == 0 {
		return nil, errors.New("elevenlabs returned empty audio")
	}
	return body, nil
}

// Ping lists the available models and returns the HTTP status
func (e *ElevenLabs) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/v1/models", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
