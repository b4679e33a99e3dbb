package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autovid-pipeline/config"
)

func TestPexels_SearchVideo(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "hd portrait wins",
			body: `{"videos":[{"video_files":[
				{"quality":"sd","width":360,"height":640,"link":"sd"},
				{"quality":"hd","width":1920,"height":1080,"link":"hd-landscape"},
				{"quality":"hd","width":1080,"height":1920,"link":"hd-portrait"}]}]}`,
			want: "hd-portrait",
		},
		{
			name: "any hd",
			body: `{"videos":[{"video_files":[{"quality":"sd","link":"sd"},{"quality":"hd","width":1920,"height":1080,"link":"hd"}]}]}`,
			want: "hd",
		},
		{
			name: "first file",
			body: `{"videos":[{"video_files":[{"quality":"sd","link":"first"},{"quality":"sd","link":"second"}]}]}`,
			want: "first",
		},
		{
			name: "first video with files decides",
			body: `{"videos":[{"video_files":[]},{"video_files":[{"quality":"sd","link":"v2"}]},{"video_files":[{"quality":"hd","width":1,"height":2,"link":"v3"}]}]}`,
			want: "v2",
		},
		{
			name: "files without links are skipped",
			body: `{"videos":[{"video_files":[{"quality":"hd","width":1080,"height":1920,"link":""}]},{"video_files":[{"quality":"hd","width":1080,"height":1920,"link":""},{"quality":"sd","link":"v2-sd"}]}]}`,
			want: "v2-sd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/videos/search", r.URL.Path)
				assert.Equal(t, "ocean waves", r.URL.Query().Get("query"))
				assert.Equal(t, "5", r.URL.Query().Get("per_page"))
				assert.Equal(t, "pk", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewPexels(config.MediaConfig{PexelsEndpoint: srv.URL, PexelsAPIKey: "pk", Timeout: time.Second})
			got, err := p.SearchVideo(context.Background(), "ocean waves")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPexels_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "empty":
			_, _ = io.WriteString(w, `{"videos":[]}`)
			return
		case "linkless":
			_, _ = io.WriteString(w, `{"videos":[{"video_files":[{"quality":"hd","width":1080,"height":1920,"link":""}]}]}`)
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewPexels(config.MediaConfig{PexelsEndpoint: srv.URL, Timeout: time.Second})

	_, err := p.SearchVideo(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNoVideo)

	_, err = p.SearchVideo(context.Background(), "linkless")
	assert.ErrorIs(t, err, ErrNoVideo)

	_, err = p.SearchVideo(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestElevenLabs_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice1", r.URL.Path)
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		assert.Equal(t, "ek", r.Header.Get("xi-api-key"))

		var req ttsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req.Text)
		assert.Equal(t, "eleven_monolingual_v1", req.ModelID)
		assert.InDelta(t, 0.5, req.VoiceSettings.Stability, 1e-9)
		assert.InDelta(t, 0.75, req.VoiceSettings.SimilarityBoost, 1e-9)

		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	cfg := config.Default().Media
	cfg.ElevenLabsEndpoint = srv.URL
	cfg.ElevenLabsAPIKey = "ek"
	cfg.VoiceID = "voice1"

	audio, err := NewElevenLabs(cfg).Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(audio))
}

func TestElevenLabs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Default().Media
	cfg.ElevenLabsEndpoint = srv.URL

	_, err := NewElevenLabs(cfg).Synthesize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid key")
}
