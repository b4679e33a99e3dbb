package render

import (
	"math"
	"strings"

	"autovid-pipeline/types"
)

const (
	wordsPerSecond   = 2.5
	minSceneSeconds  = 3.0
	fastSceneSeconds = 4.0
	fastSceneLimit   = 3
)

// Edit is the Shotstack render request body
type Edit struct {
	Timeline Timeline `json:"timeline"`
	Output   Output   `json:"output"`
}

// Timeline is the background, optional soundtrack and ordered tracks of one edit
type Timeline struct {
	Background string      `json:"background"`
	Soundtrack *Soundtrack `json:"soundtrack,omitempty"`
	Tracks     []Track     `json:"tracks"`
}

// Soundtrack is background music mixed under the whole timeline
type Soundtrack struct {
	Src    string  `json:"src"`
	Effect string  `json:"effect"`
	Volume float64 `json:"volume"`
}

// Track is one layer of clips; earlier tracks render on top
type Track struct {
	Clips []Clip `json:"clips"`
}

// Clip places an asset on a track, in seconds from the start of the video
type Clip struct {
	Asset  Asset   `json:"asset"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

// Asset covers the video, audio and title asset shapes
type Asset struct {
	Type   string   `json:"type"`
	Src    string   `json:"src,omitempty"`
	Text   string   `json:"text,omitempty"`
	Style  string   `json:"style,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// Output selects the rendered file format and size
type Output struct {
	Format      string `json:"format"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// timelineOptions are the per-mode knobs of buildEdit
type timelineOptions struct {
	Fast        bool
	Soundtrack  string
	AspectRatio string
	// AudioSrc maps a local audio path to the src the renderer will fetch
	AudioSrc func(path string) string
}

// SceneDuration is the clip length for a narration: 2.5 words per second, at least 3s.
// Fast mode caps it at 4s.
func SceneDuration(narration string, fast bool) float64 {
	d := math.Max(float64(len(strings.Fields(narration)))/wordsPerSecond, minSceneSeconds)
	if fast {
		d = math.Min(d, fastSceneSeconds)
	}
	return d
}

// buildEdit lays the assets out back to back on three tracks: muted video, narration, captions.
func buildEdit(assets []types.SceneAsset, opts timelineOptions) Edit {
	if opts.Fast && len(assets) > fastSceneLimit {
		assets = assets[:fastSceneLimit]
	}
	audioSrc := opts.AudioSrc
	if audioSrc == nil {
		audioSrc = func(p string) string { return p }
	}

	var videoClips, audioClips, captionClips []Clip
	start := 0.0
	for _, a := range assets {
		length := SceneDuration(a.Narration, opts.Fast)
		videoClips = append(videoClips, Clip{
			Asset:  Asset{Type: "video", Src: a.VideoURL, Volume: volume(0)},
			Start:  start,
			Length: length,
		})
		audioClips = append(audioClips, Clip{
			Asset:  Asset{Type: "audio", Src: audioSrc(a.AudioPath), Volume: volume(1)},
			Start:  start,
			Length: length,
		})
		captionClips = append(captionClips, Clip{
			Asset:  Asset{Type: "title", Text: a.Narration, Style: "subtitle"},
			Start:  start,
			Length: length,
		})
		start += length
	}

	tl := Timeline{
		Background: "#000000",
		Tracks:     []Track{{Clips: videoClips}, {Clips: audioClips}, {Clips: captionClips}},
	}
	if !opts.Fast && opts.Soundtrack != "" {
		tl.Soundtrack = &Soundtrack{Src: opts.Soundtrack, Effect: "fadeInFadeOut", Volume: 0.1}
	}

	resolution := "1080"
	if opts.Fast {
		resolution = "sd"
	}
	return Edit{
		Timeline: tl,
		Output:   Output{Format: "mp4", Resolution: resolution, AspectRatio: opts.AspectRatio},
	}
}

func volume(v float64) *float64 { return &v }
