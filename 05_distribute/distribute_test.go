package distribute

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"

	"autovid-pipeline/config"
	"autovid-pipeline/types"
	"autovid-pipeline/workspace"
)

type fakeAuth struct {
	err error
}

func (f fakeAuth) Client(context.Context) (*http.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return http.DefaultClient, nil
}

var videoBytes = strings.Repeat("v", 4096)

func videoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/final.mp4":
			_, _ = io.WriteString(w, videoBytes)
		case "/tiny.mp4":
			_, _ = io.WriteString(w, "<html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func liveUploader(t *testing.T, auth ClientProvider) (*Uploader, *workspace.Workspace) {
	t.Helper()
	cfg := config.Default()
	cfg.DevMode = false
	ws, err := workspace.New(t.TempDir(), "run1")
	require.NoError(t, err)
	return New(cfg, auth), ws
}

func TestUpload_Success(t *testing.T) {
	srv := videoServer(t)
	u, ws := liveUploader(t, fakeAuth{})

	var got *youtube.Video
	var body []byte
	u.insert = func(_ context.Context, _ *http.Client, video *youtube.Video, media io.Reader) (string, error) {
		got = video
		var err error
		body, err = io.ReadAll(media)
		require.NoError(t, err)
		return "yt123", nil
	}

	res := u.Upload(context.Background(), ws, srv.URL+"/final.mp4", strings.Repeat("T", 150), "desc")

	assert.Equal(t, types.UploadResult{Uploaded: true, VideoID: "yt123", VideoURL: "https://www.youtube.com/watch?v=yt123"}, res)
	assert.Equal(t, videoBytes, string(body))
	require.NotNil(t, got)
	assert.Len(t, []rune(got.Snippet.Title), 100)
	assert.Equal(t, "28", got.Snippet.CategoryId)
	assert.Equal(t, []string{"AI", "Automation", "Shorts", "Go"}, got.Snippet.Tags)
	assert.Equal(t, "private", got.Status.PrivacyStatus)
	assert.False(t, got.Status.SelfDeclaredMadeForKids)

	_, err := os.Stat(ws.Path(downloadName))
	assert.True(t, os.IsNotExist(err), "downloaded file must be removed")
}

func TestUpload_FailuresAreReported(t *testing.T) {
	srv := videoServer(t)

	tests := []struct {
		name    string
		url     string
		auth    ClientProvider
		insert  error
		wantErr string
	}{
		{"download 404", srv.URL + "/missing.mp4", fakeAuth{}, nil, "HTTP 404"},
		{"tiny body", srv.URL + "/tiny.mp4", fakeAuth{}, nil, "too small"},
		{"auth", srv.URL + "/final.mp4", fakeAuth{err: errors.New("no client secrets")}, nil, "youtube auth"},
		{"insert", srv.URL + "/final.mp4", fakeAuth{}, errors.New("quotaExceeded"), "quotaExceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ws := liveUploader(t, tt.auth)
			u.insert = func(context.Context, *http.Client, *youtube.Video, io.Reader) (string, error) {
				return "id", tt.insert
			}

			res := u.Upload(context.Background(), ws, tt.url, "title", "desc")

			assert.False(t, res.Uploaded)
			assert.Contains(t, res.Error, tt.wantErr)
			_, err := os.Stat(ws.Path(downloadName))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestUpload_DevMode(t *testing.T) {
	cfg := config.Default()
	cfg.DevMode = true
	ws, err := workspace.New(t.TempDir(), "run1")
	require.NoError(t, err)

	res := New(cfg, nil).Upload(context.Background(), ws, "https://example.invalid/v.mp4", "t", "d")

	assert.False(t, res.Uploaded)
	assert.Equal(t, "distribution disabled in dev mode", res.Error)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("  short ", 100))
	assert.Equal(t, "abcdefg...", TruncateTitle("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé", TruncateTitle("éééé", 3))
	assert.Equal(t, "anything", TruncateTitle("anything", 0))
}

func TestDescription(t *testing.T) {
	d := Description(types.VideoIdea{Hook: "Hook line.", Points: []string{"one", "two"}, CTA: "Subscribe!"})

	assert.Equal(t, "Hook line.\n\nIn this video:\n- one\n- two\n\nSubscribe!\n\n#Shorts", d)
}

func TestDownload_WrapsSentinel(t *testing.T) {
	srv := videoServer(t)
	d := &downloader{httpClient: srv.Client()}
	path := t.TempDir() + "/out.mp4"

	_, err := d.download(context.Background(), srv.URL+"/tiny.mp4", path)
	assert.ErrorIs(t, err, ErrDownload)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "rejected download must not leave a file")

	n, err := d.download(context.Background(), srv.URL+"/final.mp4", path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(videoBytes)), n)
}
