package types

// Stage names reported in PipelineResult.Stage
const (
	StageIdea       = "idea"
	StageScript     = "script"
	StageMedia      = "media"
	StageRender     = "render"
	StageDistribute = "distribute"
	StageDone       = "done"
)

// VideoIdea is the concept every later stage builds on
type VideoIdea struct {
	Title  string   `json:"title"`
	Hook   string   `json:"hook"`
	Points []string `json:"points"`
	CTA    string   `json:"cta"`
}

// Scene is one timed unit of the video; slice position is playback order
type Scene struct {
	Visual    string `json:"visual"`
	Narration string `json:"narration"`
}

// Script is the ordered scene list for one video
type Script struct {
	Scenes   []Scene `json:"scenes"`
	Fallback bool    `json:"fallback,omitempty"`
}

// SceneAsset is a scene with its resolved media
type SceneAsset struct {
	Scene
	Index            int    `json:"index"`
	VideoURL         string `json:"video_url"`
	AudioPath        string `json:"audio_path"`
	VideoPlaceholder bool   `json:"video_placeholder,omitempty"`
	AudioPlaceholder bool   `json:"audio_placeholder,omitempty"`
}

// RenderResult is the terminal output of the render stage
type RenderResult struct {
	FinalVideoURL string `json:"final_video_url,omitempty"`
	RenderID      string `json:"render_id,omitempty"`
	Error         string `json:"error,omitempty"`
	Details       string `json:"details,omitempty"`
	Err           error  `json:"-"`
}

// Failed reports whether the render produced an error instead of a video
func (r RenderResult) Failed() bool {
	return r.Error != ""
}

// UploadResult is what the distribution stage hands back to the orchestrator
type UploadResult struct {
	Uploaded bool   `json:"uploaded"`
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PipelineRequest is one inbound pipeline invocation
type PipelineRequest struct {
	Niche   string `json:"niche"`
	Upload  bool   `json:"upload"`
	Verbose bool   `json:"verbose"`
}

// PipelineResult is assembled once per run and returned to the caller
type PipelineResult struct {
	JobID         string  `json:"job_id"`
	Stage         string  `json:"stage"`
	FinalVideoURL *string `json:"final_video_url"`
	Uploaded      bool    `json:"uploaded"`
	UploadError   *string `json:"upload_error,omitempty"`
	Error         *string `json:"error"`
}

// PipelineState is the per-run snapshot saved next to the run's scratch files
type PipelineState struct {
	RunID       string         `json:"run_id"`
	Niche       string         `json:"niche"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at"`
	Idea        *VideoIdea     `json:"idea,omitempty"`
	Script      *Script        `json:"script,omitempty"`
	Assets      []SceneAsset   `json:"assets,omitempty"`
	Render      *RenderResult  `json:"render,omitempty"`
	Upload      *UploadResult  `json:"upload,omitempty"`
	Result      PipelineResult `json:"result"`
}
