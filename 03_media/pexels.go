package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"autovid-pipeline/config"
	"autovid-pipeline/metrics"
)

// ErrNoVideo is returned when a search succeeds but yields no usable file
var ErrNoVideo = errors.New("no video found")

// Pexels searches the Pexels video library
type Pexels struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewPexels creates a Pexels client
func NewPexels(cfg config.MediaConfig) *Pexels {
	return &Pexels{
		endpoint:   strings.TrimRight(cfg.PexelsEndpoint, "/"),
		apiKey:     cfg.PexelsAPIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type videoFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

type searchResponse struct {
	Videos []struct {
		VideoFiles []videoFile `json:"video_files"`
	} `json:"videos"`
}

// SearchVideo returns the link of the best file for query
func (p *Pexels) SearchVideo(ctx context.Context, query string) (link string, err error) {
	defer func() {
		if errors.Is(err, ErrNoVideo) {
			metrics.ProviderRequest("pexels", nil)
			return
		}
		metrics.ProviderRequest("pexels", err)
	}()

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/videos/search?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pexels request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read pexels response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pexels HTTP %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse pexels response: %w", err)
	}

	for _, v := range parsed.Videos {
		if link := pickFile(v.VideoFiles); link != "" {
			return link, nil
		}
	}
	return "", ErrNoVideo
}

// pickFile prefers HD portrait, then any HD, then the first file. Files without a link are skipped;
// an empty result means the video has nothing usable.
func pickFile(files []videoFile) string {
	for _, f := range files {
		if f.Link != "" && f.Quality == "hd" && f.Width < f.Height {
			return f.Link
		}
	}
	for _, f := range files {
		if f.Link != "" && f.Quality == "hd" {
			return f.Link
		}
	}
	for _, f := range files {
		if f.Link != "" {
			return f.Link
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ping runs a one-result search and returns the HTTP status
func (p *Pexels) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/videos/search?query=nature&per_page=1", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
