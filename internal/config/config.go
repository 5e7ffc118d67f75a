package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Group policies applied when one half of a split event is a duplicate.
const (
	GroupPolicySkipGroup = "skip-group"
	GroupPolicySkipPart  = "skip-part"
)

// FeedConfig describes the announcement RSS source.
type FeedConfig struct {
	URL       string `yaml:"url" json:"url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// CacheDir holds ETag/Last-Modified metadata and the last body.
	CacheDir       string `yaml:"cache_dir" json:"cache_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DedupeConfig tunes duplicate detection and the comparison window.
type DedupeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// LookbackDays / LookaheadDays bound the existing-events window listed
	// from the calendar on each run.
	LookbackDays  int `yaml:"lookback_days" json:"lookback_days"`
	LookaheadDays int `yaml:"lookahead_days" json:"lookahead_days"`
	// WindowDays / FutureDays bound which feed items are considered by
	// publication date.
	WindowDays  int    `yaml:"window_days" json:"window_days"`
	FutureDays  int    `yaml:"future_days" json:"future_days"`
	GroupPolicy string `yaml:"group_policy" json:"group_policy"`
}

// OpenAIConfig configures the LLM used for summaries and extraction.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key" json:"-"`
	ContentModel string `yaml:"content_model" json:"content_model"`
	VisionModel  string `yaml:"vision_model" json:"vision_model"`
	// Endpoint overrides the chat completions URL entirely.
	Endpoint          string `yaml:"endpoint" json:"endpoint"`
	GatewayAccountID  string `yaml:"gateway_account_id" json:"gateway_account_id"`
	GatewayName       string `yaml:"gateway_name" json:"gateway_name"`
	GatewayAuth       string `yaml:"gateway_auth" json:"-"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CalendarConfig selects and configures the publishing calendar.
type CalendarConfig struct {
	// Backend is "google" or "ics".
	Backend            string `yaml:"backend" json:"backend"`
	GoogleCalendarID   string `yaml:"google_calendar_id" json:"google_calendar_id"`
	ServiceAccountJSON string `yaml:"service_account_json" json:"-"`
	ServiceAccountFile string `yaml:"service_account_file" json:"service_account_file"`
	ICSPath            string `yaml:"ics_path" json:"ics_path"`
}

// StoreConfig selects the processed-record store.
type StoreConfig struct {
	// Backend is "sqlite", "redis" or "memory".
	Backend       string `yaml:"backend" json:"backend"`
	SQLitePath    string `yaml:"sqlite_path" json:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// TelegramConfig holds notification credentials. Empty values disable it.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"-"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

// PreviewConfig controls headless rendering of notice pages whose feed
// body is empty.
type PreviewConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address used by `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for "today" and window math.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string for `serve`.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Dedupe   DedupeConfig   `yaml:"dedupe" json:"dedupe"`
	OpenAI   OpenAIConfig   `yaml:"openai" json:"openai"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Preview  PreviewConfig  `yaml:"preview" json:"preview"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultFeedURL   = "https://www.knue.ac.kr/rssBbsNtt.do?bbsNo=28"
	defaultUserAgent = "knue-event-harvester/1.0"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8787"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Feed.URL == "" {
		c.Feed.URL = defaultFeedURL
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = defaultUserAgent
	}
	if c.Feed.CacheDir == "" {
		c.Feed.CacheDir = "./var/feed-cache"
	}
	if c.Feed.TimeoutSeconds <= 0 {
		c.Feed.TimeoutSeconds = 15
	}

	if c.Dedupe.SimilarityThreshold <= 0 || c.Dedupe.SimilarityThreshold > 1 {
		c.Dedupe.SimilarityThreshold = 0.85
	}
	if c.Dedupe.LookbackDays <= 0 {
		c.Dedupe.LookbackDays = 60
	}
	if c.Dedupe.LookaheadDays <= 0 {
		c.Dedupe.LookaheadDays = 30
	}
	if c.Dedupe.WindowDays <= 0 {
		c.Dedupe.WindowDays = 7
	}
	if c.Dedupe.FutureDays <= 0 {
		c.Dedupe.FutureDays = 30
	}
	switch c.Dedupe.GroupPolicy {
	case GroupPolicySkipGroup, GroupPolicySkipPart:
		// ok
	default:
		c.Dedupe.GroupPolicy = GroupPolicySkipGroup
	}

	if c.OpenAI.ContentModel == "" {
		c.OpenAI.ContentModel = "gpt-4o-mini"
	}
	if c.OpenAI.RequestsPerMinute <= 0 {
		c.OpenAI.RequestsPerMinute = 30
	}

	switch c.Calendar.Backend {
	case "google", "ics":
	default:
		c.Calendar.Backend = "ics"
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = "./var/calendar.ics"
	}

	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		c.Store.Backend = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "./var/processed.db"
	}
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = "harvester:processed:"
	}

	if c.Preview.TimeoutSeconds <= 0 {
		c.Preview.TimeoutSeconds = 30
	}
}

// Validate reports configuration that cannot work for the selected backends.
func (c *Config) Validate() error {
	var errs []error
	if c.Calendar.Backend == "google" {
		if c.Calendar.GoogleCalendarID == "" {
			errs = append(errs, errors.New("calendar.google_calendar_id is required for the google backend"))
		}
		if c.Calendar.ServiceAccountJSON == "" && c.Calendar.ServiceAccountFile == "" {
			errs = append(errs, errors.New("calendar service account credentials are required for the google backend"))
		}
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
	}
	return errors.Join(errs...)
}

// ApplyEnv overlays secrets and tunables from the environment. A .env file
// in the working directory is loaded first if it exists; variables already
// set in the process environment win over it.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.ContentModel, "OPENAI_CONTENT_MODEL")
	setString(&c.OpenAI.VisionModel, "OPENAI_VISION_MODEL")
	setString(&c.OpenAI.GatewayAccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&c.OpenAI.GatewayName, "CLOUDFLARE_AI_GATEWAY_NAME")
	setString(&c.OpenAI.GatewayAuth, "CLOUDFLARE_AI_GATEWAY_AUTH")
	setString(&c.Calendar.GoogleCalendarID, "GOOGLE_CALENDAR_ID")
	setString(&c.Calendar.ServiceAccountJSON, "GOOGLE_SERVICE_ACCOUNT_JSON")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_USER_ID")
	setString(&c.Store.RedisAddr, "REDIS_ADDR")
	setString(&c.Store.RedisPassword, "REDIS_PASSWORD")

	if v := strings.TrimSpace(os.Getenv("SIMILARITY_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Dedupe.SimilarityThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOOKBACK_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dedupe.LookbackDays = n
		}
	}

	c.Normalize()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".harvester-config-*.tmp")
}

// WriteFileAtomic writes data next to path and renames it into place with
// 0600 permissions, creating the parent directory (0700) when needed.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
