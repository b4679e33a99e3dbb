package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	geminiAPIKeyEnv     = "GEMINI_API_KEY"
	geminiModelEnv      = "GEMINI_MODEL"
	pexelsAPIKeyEnv     = "PEXELS_API_KEY"
	elevenLabsAPIKeyEnv = "ELEVENLABS_API_KEY"
	shotstackAPIKeyEnv  = "SHOTSTACK_API_KEY"
	shotstackStageEnv   = "SHOTSTACK_STAGE"
	devModeEnv          = "AUTOVIDAI_DEV_MODE"
	allowPlaceholderEnv = "STAGE3_ALLOW_PLACEHOLDER"
	fastModeEnv         = "AUTOVIDAI_FAST"
	logLevelEnv         = "LOG_LEVEL"
	httpAddrEnv         = "HTTP_ADDR"
	publicBaseURLEnv    = "PUBLIC_BASE_URL"
	devKeyPrefix        = "dev_"
)

// Config is built once in main and passed to every stage constructor.
type Config struct {
	DevMode          bool `yaml:"dev_mode"`
	AllowPlaceholder bool `yaml:"allow_placeholder"`
	Fast             bool `yaml:"fast"`

	LLM          LLMConfig          `yaml:"llm"`
	Trends       TrendsConfig       `yaml:"trends"`
	Media        MediaConfig        `yaml:"media"`
	Render       RenderConfig       `yaml:"render"`
	Distribution DistributionConfig `yaml:"distribution"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	History      HistoryConfig      `yaml:"history"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`

	// explicitDevMode records a dev_mode set by file or env, before key inspection
	explicitDevMode bool `yaml:"-"`
}

type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TrendsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Subreddits []string `yaml:"subreddits"`
	Limit      int      `yaml:"limit"`
}

type MediaConfig struct {
	PexelsEndpoint     string        `yaml:"pexels_endpoint"`
	PexelsAPIKey       string        `yaml:"pexels_api_key"`
	ElevenLabsEndpoint string        `yaml:"elevenlabs_endpoint"`
	ElevenLabsAPIKey   string        `yaml:"elevenlabs_api_key"`
	VoiceID            string        `yaml:"voice_id"`
	TTSModel           string        `yaml:"tts_model"`
	Stability          float64       `yaml:"stability"`
	SimilarityBoost    float64       `yaml:"similarity_boost"`
	PlaceholderVideo   string        `yaml:"placeholder_video"`
	Concurrency        int           `yaml:"concurrency"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	Timeout            time.Duration `yaml:"timeout"`
}

type RenderConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Stage          string        `yaml:"stage"`
	APIKey         string        `yaml:"api_key"`
	Soundtrack     string        `yaml:"soundtrack"`
	AspectRatio    string        `yaml:"aspect_ratio"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	FastPollEvery  time.Duration `yaml:"fast_poll_interval"`
	MaxPolls       int           `yaml:"max_polls"`
	PublicBaseURL  string        `yaml:"public_base_url"`
	SampleVideoURL string        `yaml:"sample_video_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

type DistributionConfig struct {
	ClientSecretsFile string   `yaml:"client_secrets_file"`
	TokenFile         string   `yaml:"token_file"`
	CategoryID        string   `yaml:"category_id"`
	Privacy           string   `yaml:"privacy"`
	Tags              []string `yaml:"tags"`
	MadeForKids       bool     `yaml:"made_for_kids"`
	TitleMaxChars     int      `yaml:"title_max_chars"`
}

type WorkspaceConfig struct {
	Root string `yaml:"root"`
	Keep bool   `yaml:"keep"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	PipelineRateLimit  int    `yaml:"pipeline_rate_limit"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config usable without a config file.
func Default() *Config {
	return &Config{
		AllowPlaceholder: true,
		LLM: LLMConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Model:    "gemini-2.5-flash",
			Timeout:  90 * time.Second,
		},
		Trends: TrendsConfig{
			Subreddits: []string{"todayilearned", "science", "Damnthatsinteresting"},
			Limit:      10,
		},
		Media: MediaConfig{
			PexelsEndpoint:     "https://api.pexels.com",
			ElevenLabsEndpoint: "https://api.elevenlabs.io",
			VoiceID:            "21m00Tcm4TlvDq8ikWAM",
			TTSModel:           "eleven_monolingual_v1",
			Stability:          0.5,
			SimilarityBoost:    0.75,
			PlaceholderVideo:   "https://www.w3schools.com/html/mov_bbb.mp4",
			Concurrency:        1,
			RequestsPerSecond:  5,
			Timeout:            60 * time.Second,
		},
		Render: RenderConfig{
			Endpoint:       "https://api.shotstack.io",
			Stage:          "v1",
			Soundtrack:     "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			AspectRatio:    "9:16",
			PollInterval:   10 * time.Second,
			FastPollEvery:  6 * time.Second,
			MaxPolls:       90,
			SampleVideoURL: "https://www.w3schools.com/html/mov_bbb.mp4",
			Timeout:        30 * time.Second,
		},
		Distribution: DistributionConfig{
			ClientSecretsFile: "client_secret.json",
			TokenFile:         "token.json",
			CategoryID:        "28",
			Privacy:           "private",
			Tags:              []string{"AI", "Automation", "Shorts", "Go"},
			TitleMaxChars:     100,
		},
		Workspace: WorkspaceConfig{Root: "temp"},
		History:   HistoryConfig{Path: "data/runs.db"},
		Server: ServerConfig{
			Addr:               ":8000",
			PipelineRateLimit:  10,
			ShutdownTimeoutSec: 10,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads config.yaml (if present) on top of defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.explicitDevMode = cfg.DevMode

	cfg.applyEnvOverrides()
	cfg.resolveDevMode()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(pexelsAPIKeyEnv); v != "" {
		c.Media.PexelsAPIKey = v
	}
	if v := os.Getenv(elevenLabsAPIKeyEnv); v != "" {
		c.Media.ElevenLabsAPIKey = v
	}
	if v := os.Getenv(shotstackAPIKeyEnv); v != "" {
		c.Render.APIKey = v
	}
	if v := os.Getenv(shotstackStageEnv); v != "" {
		c.Render.Stage = v
	}
	if v, ok := os.LookupEnv(devModeEnv); ok {
		c.explicitDevMode = truthy(v)
	}
	if v, ok := os.LookupEnv(allowPlaceholderEnv); ok {
		c.AllowPlaceholder = truthy(v)
	}
	if v, ok := os.LookupEnv(fastModeEnv); ok {
		c.Fast = truthy(v)
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(publicBaseURLEnv); v != "" {
		c.Render.PublicBaseURL = strings.TrimRight(v, "/")
	}
}

// resolveDevMode turns dev mode on when it was requested or a media key is absent or a dev_ stub.
func (c *Config) resolveDevMode() {
	c.DevMode = c.explicitDevMode ||
		devKey(c.Media.PexelsAPIKey) ||
		devKey(c.Media.ElevenLabsAPIKey)
}

// Validate rejects settings that would make a stage loop or stall.
func (c *Config) Validate() error {
	if c.Render.PollInterval <= 0 || c.Render.FastPollEvery <= 0 {
		return fmt.Errorf("config: render poll intervals must be positive")
	}
	if c.Render.MaxPolls <= 0 {
		return fmt.Errorf("config: render.max_polls must be positive")
	}
	if c.Media.Concurrency <= 0 {
		return fmt.Errorf("config: media.concurrency must be positive")
	}
	if c.Media.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: media.requests_per_second must be positive")
	}
	return nil
}

// PollInterval is the render poll period for the current mode.
func (c *Config) PollInterval() time.Duration {
	if c.Fast {
		return c.Render.FastPollEvery
	}
	return c.Render.PollInterval
}

func devKey(key string) bool {
	return key == "" || strings.HasPrefix(key, devKeyPrefix)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
