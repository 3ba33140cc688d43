package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFeedURL = "https://assets.wor.jp/rss/rdf/nikkei/news.rdf"
	MaxArticles    = 30
)

// Provider names accepted in the providers list.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all application configuration. It is built once at process
// start and handed to every component that needs a credential or setting.
type Config struct {
	FeedURL              string `yaml:"feed_url"`
	MaxArticles          int    `yaml:"max_articles"`
	EnrichEmptySummaries bool   `yaml:"enrich_empty_summaries"`
	SummariesDir         string `yaml:"summaries_dir"`

	Providers       []string `yaml:"providers"`
	GeminiAPIKey    string   `yaml:"gemini_api_key"`
	GeminiModel     string   `yaml:"gemini_model"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`
	AnthropicModel  string   `yaml:"anthropic_model"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	OpenAIModel     string   `yaml:"openai_model"`

	LineChannelToken string `yaml:"line_channel_token"`
	LineUserID       string `yaml:"line_user_id"`
	TelegramToken    string `yaml:"telegram_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`

	DigestTime          string `yaml:"digest_time"`
	Timezone            string `yaml:"timezone"`
	FetchTimeoutSecs    int    `yaml:"fetch_timeout_secs"`
	GenerateTimeoutSecs int    `yaml:"generate_timeout_secs"`
	DBPath              string `yaml:"db_path"`
	LogLevel            string `yaml:"log_level"`
}

var digestTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result. When optional is true a
// missing file is treated as an empty one.
func Load(path string, optional bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyDefaults(cfg)
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default,
// and whether the file may be absent.
func GetConfigPath() (string, bool) {
	if path := os.Getenv("NIKKEI_DIGEST_CONFIG"); path != "" {
		return path, false
	}
	return "./config.yaml", true
}

// Location returns the configured timezone. Validation guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FetchTimeout is the HTTP timeout for feed and page retrieval.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// GenerateTimeout bounds a single generation backend call.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.MaxArticles == 0 {
		cfg.MaxArticles = MaxArticles
	}
	if cfg.SummariesDir == "" {
		cfg.SummariesDir = "summaries"
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []string{ProviderGemini, ProviderAnthropic}
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-1.5-flash-8b"
	}
	if cfg.AnthropicModel == "" {
		cfg.AnthropicModel = "claude-sonnet-4-20250514"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.DigestTime == "" {
		cfg.DigestTime = "07:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Tokyo"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 30
	}
	if cfg.GenerateTimeoutSecs == 0 {
		cfg.GenerateTimeoutSecs = 120
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./nikkei-digest.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) error {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GOOGLE_API_KEY", &cfg.GeminiAPIKey},
		{"ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey},
		{"OPENAI_API_KEY", &cfg.OpenAIAPIKey},
		{"LINE_CHANNEL_ACCESS_TOKEN", &cfg.LineChannelToken},
		{"LINE_USER_ID", &cfg.LineUserID},
		{"TELEGRAM_BOT_TOKEN", &cfg.TelegramToken},
		{"NIKKEI_DIGEST_DB", &cfg.DBPath},
		{"SUMMARIES_DIR", &cfg.SummariesDir},
		{"LOG_LEVEL", &cfg.LogLevel},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.TelegramChatID = id
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.MaxArticles < 1 || cfg.MaxArticles > MaxArticles {
		return fmt.Errorf("max_articles must be between 1 and %d, got %d", MaxArticles, cfg.MaxArticles)
	}
	if !digestTimeRegex.MatchString(cfg.DigestTime) {
		return fmt.Errorf("digest_time must be in HH:MM format (00:00-23:59), got %q", cfg.DigestTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	seen := make(map[string]bool)
	for _, p := range cfg.Providers {
		switch p {
		case ProviderGemini, ProviderAnthropic, ProviderOpenAI:
		default:
			return fmt.Errorf("unknown provider %q", p)
		}
		if seen[p] {
			return fmt.Errorf("provider %q listed twice", p)
		}
		seen[p] = true
	}
	return nil
}
