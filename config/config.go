package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultWordPressBase = "https://test.harshtrivedi.in/wp-json/wp/v2"

// Config is the full runtime configuration. Secrets may be left empty in the
// file and supplied through the environment (see ApplyEnv).
type Config struct {
	Queue      QueueConfig      `yaml:"queue"`
	LLM        LLMConfig        `yaml:"llm"`
	Image      ImageConfig      `yaml:"image"`
	Media      MediaConfig      `yaml:"media"`
	WordPress  WordPressConfig  `yaml:"wordpress"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Post       PostConfig       `yaml:"post"`
	ServerAddr string           `yaml:"server_addr,omitempty"`
}

type QueueConfig struct {
	Driver     string `yaml:"driver"` // supabase | sqlite
	URL        string `yaml:"url"`
	Key        string `yaml:"key"`
	Table      string `yaml:"table"`
	OrderBy    string `yaml:"order_by"`
	SQLitePath string `yaml:"sqlite_path"`
	// Claim moves an item to "processing" before any work starts.
	Claim *bool `yaml:"claim"`
}

type LLMConfig struct {
	Provider       string  `yaml:"provider"` // huggingface | openai | deepseek | mock
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type ImageProviderConfig struct {
	Name  string `yaml:"name"` // huggingface | pollinations
	Model string `yaml:"model"`
}

type ImageConfig struct {
	Providers         []ImageProviderConfig `yaml:"providers"`
	Token             string                `yaml:"token"`
	HuggingFaceURL    string                `yaml:"huggingface_url"`
	PollinationsURL   string                `yaml:"pollinations_url"`
	Attempts          int                   `yaml:"attempts"`
	RetryDelaySeconds *int                  `yaml:"retry_delay_seconds"`
	MinBytes          int                   `yaml:"min_bytes"`
	Width             int                   `yaml:"width"`
	Height            int                   `yaml:"height"`
	StyleSuffix       string                `yaml:"style_suffix"`
	TimeoutSeconds    int                   `yaml:"timeout_seconds"`
}

type MediaConfig struct {
	Strategy    string `yaml:"strategy"` // imgbb | wordpress | none
	ImgBBKey    string `yaml:"imgbb_key"`
	ImgBBURL    string `yaml:"imgbb_url"`
	MaxWidth    int    `yaml:"max_width"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

type WordPressConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	AppPassword    string `yaml:"app_password"`
	Status         string `yaml:"status"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TranscriptConfig struct {
	Languages       []string `yaml:"languages"`
	TimedTextURL    string   `yaml:"timedtext_url"`
	YouTubeAPIKey   string   `yaml:"youtube_api_key"`
	YouTubeEndpoint string   `yaml:"youtube_endpoint"`
	MaxChars        int      `yaml:"max_chars"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
}

type SocialLink struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

type PostConfig struct {
	EmbedMode   string       `yaml:"embed_mode"` // oembed | iframe
	CTAHeading  string       `yaml:"cta_heading"`
	CTAMarkdown string       `yaml:"cta_markdown"`
	SocialLinks []SocialLink `yaml:"social_links"`
	BannedTerms []string     `yaml:"banned_terms"`
}

// Load reads a YAML (or JSON) config file, applies environment overrides and
// defaults. A missing file is not an error: everything can come from the
// environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.SetDefaults()
	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints with environment values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Queue.URL, "SUPABASE_URL")
	set(&c.Queue.Key, "SUPABASE_KEY")
	set(&c.LLM.APIKey, "HF_TOKEN")
	set(&c.Image.Token, "HF_TOKEN")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.Media.ImgBBKey, "IMGBB_KEY")
	set(&c.WordPress.Username, "WP_USER")
	set(&c.WordPress.AppPassword, "WP_PASS")
	set(&c.WordPress.BaseURL, "WP_URL")
	set(&c.Transcript.YouTubeAPIKey, "YOUTUBE_API_KEY")
}

// SetDefaults fills every zero value with its documented default.
func (c *Config) SetDefaults() {
	if c.Queue.Driver == "" {
		c.Queue.Driver = "supabase"
	}
	if c.Queue.Table == "" {
		c.Queue.Table = "videos"
	}
	if c.Queue.SQLitePath == "" {
		c.Queue.SQLitePath = "data/queue.db"
	}
	if c.Queue.Claim == nil {
		claim := true
		c.Queue.Claim = &claim
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "huggingface"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "mistralai/Mistral-7B-Instruct-v0.3"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "huggingface" {
		c.LLM.BaseURL = "https://router.huggingface.co/v1"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1500
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if len(c.Image.Providers) == 0 {
		c.Image.Providers = []ImageProviderConfig{
			{Name: "huggingface", Model: "stabilityai/stable-diffusion-xl-base-1.0"},
			{Name: "pollinations", Model: "flux"},
		}
	}
	if c.Image.HuggingFaceURL == "" {
		c.Image.HuggingFaceURL = "https://router.huggingface.co/hf-inference/models"
	}
	if c.Image.PollinationsURL == "" {
		c.Image.PollinationsURL = "https://image.pollinations.ai/prompt"
	}
	if c.Image.Attempts == 0 {
		c.Image.Attempts = 3
	}
	if c.Image.RetryDelaySeconds == nil {
		delay := 3
		c.Image.RetryDelaySeconds = &delay
	}
	if c.Image.MinBytes == 0 {
		c.Image.MinBytes = 1000
	}
	if c.Image.Width == 0 {
		c.Image.Width = 1280
	}
	if c.Image.Height == 0 {
		c.Image.Height = 720
	}
	if c.Image.StyleSuffix == "" {
		c.Image.StyleSuffix = "high quality editorial thumbnail, 4k, realistic, vivid colors, no text, no watermark"
	}
	if c.Image.TimeoutSeconds == 0 {
		c.Image.TimeoutSeconds = 60
	}

	if c.Media.Strategy == "" {
		c.Media.Strategy = "imgbb"
	}
	if c.Media.ImgBBURL == "" {
		c.Media.ImgBBURL = "https://api.imgbb.com/1/upload"
	}
	if c.Media.MaxWidth == 0 {
		c.Media.MaxWidth = 1280
	}
	if c.Media.JPEGQuality == 0 {
		c.Media.JPEGQuality = 85
	}

	if c.WordPress.BaseURL == "" {
		c.WordPress.BaseURL = defaultWordPressBase
	}
	c.WordPress.BaseURL = strings.TrimRight(c.WordPress.BaseURL, "/")
	// Older deployments point WP_URL at the posts endpoint itself.
	c.WordPress.BaseURL = strings.TrimSuffix(c.WordPress.BaseURL, "/posts")
	if c.WordPress.Status == "" {
		c.WordPress.Status = "publish"
	}
	if c.WordPress.TimeoutSeconds == 0 {
		c.WordPress.TimeoutSeconds = 60
	}

	if len(c.Transcript.Languages) == 0 {
		c.Transcript.Languages = []string{"en"}
	}
	if c.Transcript.TimedTextURL == "" {
		c.Transcript.TimedTextURL = "https://www.youtube.com/api/timedtext"
	}
	if c.Transcript.MaxChars == 0 {
		c.Transcript.MaxChars = 4000
	}
	if c.Transcript.TimeoutSeconds == 0 {
		c.Transcript.TimeoutSeconds = 30
	}

	if c.Post.EmbedMode == "" {
		c.Post.EmbedMode = "oembed"
	}
	if c.Post.CTAHeading == "" {
		c.Post.CTAHeading = "Follow us for more"
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	switch c.Queue.Driver {
	case "supabase":
		if c.Queue.URL == "" {
			missing = append(missing, "queue.url (SUPABASE_URL)")
		}
		if c.Queue.Key == "" {
			missing = append(missing, "queue.key (SUPABASE_KEY)")
		}
	case "sqlite":
	default:
		return fmt.Errorf("queue driver %s not supported", c.Queue.Driver)
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key (HF_TOKEN)")
	}
	switch c.Media.Strategy {
	case "imgbb":
		if c.Media.ImgBBKey == "" {
			missing = append(missing, "media.imgbb_key (IMGBB_KEY)")
		}
	case "wordpress", "none":
	default:
		return fmt.Errorf("media strategy %s not supported", c.Media.Strategy)
	}
	if c.WordPress.Username == "" {
		missing = append(missing, "wordpress.username (WP_USER)")
	}
	if c.WordPress.AppPassword == "" {
		missing = append(missing, "wordpress.app_password (WP_PASS)")
	}
	switch c.Post.EmbedMode {
	case "oembed", "iframe":
	default:
		return fmt.Errorf("post embed_mode %s not supported", c.Post.EmbedMode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ClaimEnabled reports whether items are claimed before processing.
func (c *Config) ClaimEnabled() bool {
	return c.Queue.Claim == nil || *c.Queue.Claim
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c LLMConfig) Timeout() time.Duration        { return seconds(c.TimeoutSeconds) }
func (c ImageConfig) Timeout() time.Duration      { return seconds(c.TimeoutSeconds) }
func (c WordPressConfig) Timeout() time.Duration  { return seconds(c.TimeoutSeconds) }
func (c TranscriptConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// RetryDelay is the base pause between image attempts.
func (c ImageConfig) RetryDelay() time.Duration {
	if c.RetryDelaySeconds == nil {
		return 0
	}
	return seconds(*c.RetryDelaySeconds)
}
