// Package config loads and validates the jobscout YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobscout.
type Config struct {
	Searches     []string
	Profile      ProfileConfig
	Scan         ScanConfig
	AI           AIConfig
	Digest       DigestConfig
	Notification NotificationConfig
	Store        StoreConfig
	Daemon       DaemonConfig
}

// ProfileConfig points at the user profile the scorer compares postings against.
type ProfileConfig struct {
	Path     string // file holding the profile text
	Text     string // inline profile text; takes precedence over Path
	Criteria string // extra match criteria appended to the profile
}

// ProfileText returns the profile content, reading Path when no inline text
// is configured.
func (p ProfileConfig) ProfileText() (string, error) {
	if p.Text != "" {
		return p.Text, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("read profile: %w", err)
	}
	return string(data), nil
}

// ScanConfig controls the deep-scan pool and session pacing.
type ScanConfig struct {
	Concurrency   int           // parallel page fetches per batch
	MaxDeepScans  int           // cap on postings deep-scanned per session
	JobTimeout    time.Duration // per-posting fetch+score budget
	BatchPause    time.Duration // pause between deep-scan batches
	TargetPause   time.Duration // pause between search targets
	MinMatchScore float64       // threshold for digest eligibility
}

// AIConfig controls the LLM scoring layer. When disabled, scoring falls back
// to keyword matching.
type AIConfig struct {
	Enabled bool
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // model identifier, e.g. "gpt-4o-mini"
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

// DigestConfig controls digest assembly.
type DigestConfig struct {
	SendEmpty   bool `yaml:"send_empty"`   // send a digest even when nothing matched
	IncludeSent bool `yaml:"include_sent"` // re-include postings already digested
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string // "log", "slack", or "email"
	WebhookURL string // required if type is "slack"
	Email      EmailConfig
}

// EmailConfig holds SMTP settings for the email notifier.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StoreConfig selects the job index backend.
type StoreConfig struct {
	Backend string // "file", "sqlite", or "redis"
	Path    string // file/sqlite path
	Redis   RedisConfig
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DaemonConfig holds the daemon-mode schedules.
type DaemonConfig struct {
	ScanSchedule   string // cron spec for scheduled scans
	DigestSchedule string // cron spec for scheduled digests
	RetryMax       int    // page-fetch retries
	RetryBaseDelay time.Duration
	HostMinDelay   time.Duration // rate-limit gap per host
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as
// strings).
type rawConfig struct {
	Searches     []string         `yaml:"searches"`
	Profile      rawProfileConfig `yaml:"profile"`
	Scan         rawScanConfig    `yaml:"scan"`
	AI           rawAIConfig      `yaml:"ai"`
	Digest       DigestConfig     `yaml:"digest"`
	Notification rawNotification  `yaml:"notification"`
	Store        rawStoreConfig   `yaml:"store"`
	Daemon       rawDaemonConfig  `yaml:"daemon"`
}

type rawProfileConfig struct {
	Path     string `yaml:"path"`
	Text     string `yaml:"text"`
	Criteria string `yaml:"criteria"`
}

type rawScanConfig struct {
	Concurrency   int     `yaml:"concurrency"`
	MaxDeepScans  int     `yaml:"max_deep_scans"`
	JobTimeout    string  `yaml:"job_timeout"`
	BatchPause    string  `yaml:"batch_pause"`
	TargetPause   string  `yaml:"target_pause"`
	MinMatchScore float64 `yaml:"min_match_score"`
}

type rawAIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type rawNotification struct {
	Type       string      `yaml:"type"`
	WebhookURL string      `yaml:"webhook_url"`
	Email      EmailConfig `yaml:"email"`
}

type rawStoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type rawDaemonConfig struct {
	ScanSchedule   string `yaml:"scan_schedule"`
	DigestSchedule string `yaml:"digest_schedule"`
	RetryMax       int    `yaml:"retry_max"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	HostMinDelay   string `yaml:"host_min_delay"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	jobTimeout, err := durationOr(raw.Scan.JobTimeout, 5*time.Minute, "scan.job_timeout")
	if err != nil {
		return nil, err
	}
	batchPause, err := durationOr(raw.Scan.BatchPause, 2*time.Second, "scan.batch_pause")
	if err != nil {
		return nil, err
	}
	targetPause, err := durationOr(raw.Scan.TargetPause, 5*time.Second, "scan.target_pause")
	if err != nil {
		return nil, err
	}
	aiTimeout, err := durationOr(raw.AI.Timeout, 30*time.Second, "ai.timeout")
	if err != nil {
		return nil, err
	}
	retryBase, err := durationOr(raw.Daemon.RetryBaseDelay, 5*time.Second, "daemon.retry_base_delay")
	if err != nil {
		return nil, err
	}
	hostDelay, err := durationOr(raw.Daemon.HostMinDelay, 2*time.Second, "daemon.host_min_delay")
	if err != nil {
		return nil, err
	}

	concurrency := raw.Scan.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	maxDeepScans := raw.Scan.MaxDeepScans
	if maxDeepScans <= 0 {
		maxDeepScans = 10
	}
	minScore := raw.Scan.MinMatchScore
	if minScore <= 0 {
		minScore = 0.7
	}
	retryMax := raw.Daemon.RetryMax
	if retryMax <= 0 {
		retryMax = 2
	}

	aiBaseURL := raw.AI.BaseURL
	if aiBaseURL == "" {
		aiBaseURL = defaultOpenAIBaseURL
	}

	backend := raw.Store.Backend
	if backend == "" {
		backend = "file"
	}
	storePath := raw.Store.Path
	if storePath == "" {
		storePath = "jobindex.json"
	}

	cfg := &Config{
		Searches: raw.Searches,
		Profile: ProfileConfig{
			Path:     raw.Profile.Path,
			Text:     raw.Profile.Text,
			Criteria: raw.Profile.Criteria,
		},
		Scan: ScanConfig{
			Concurrency:   concurrency,
			MaxDeepScans:  maxDeepScans,
			JobTimeout:    jobTimeout,
			BatchPause:    batchPause,
			TargetPause:   targetPause,
			MinMatchScore: minScore,
		},
		AI: AIConfig{
			Enabled: raw.AI.Enabled,
			BaseURL: aiBaseURL,
			Model:   raw.AI.Model,
			APIKey:  raw.AI.APIKey,
			Timeout: aiTimeout,
		},
		Digest: raw.Digest,
		Notification: NotificationConfig{
			Type:       raw.Notification.Type,
			WebhookURL: raw.Notification.WebhookURL,
			Email:      raw.Notification.Email,
		},
		Store: StoreConfig{
			Backend: backend,
			Path:    storePath,
			Redis:   raw.Store.Redis,
		},
		Daemon: DaemonConfig{
			ScanSchedule:   raw.Daemon.ScanSchedule,
			DigestSchedule: raw.Daemon.DigestSchedule,
			RetryMax:       retryMax,
			RetryBaseDelay: retryBase,
			HostMinDelay:   hostDelay,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationOr(raw string, fallback time.Duration, field string) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	if len(cfg.Searches) == 0 {
		return fmt.Errorf("at least one search URL must be configured")
	}
	for _, s := range cfg.Searches {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return fmt.Errorf("search URL %q must be http(s)", s)
		}
	}

	if cfg.Profile.Text == "" && cfg.Profile.Path == "" {
		return fmt.Errorf("profile.text or profile.path is required")
	}

	if cfg.Scan.MinMatchScore > 1 {
		return fmt.Errorf("scan.min_match_score must be at most 1, got %v", cfg.Scan.MinMatchScore)
	}

	switch cfg.Notification.Type {
	case "", "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case "email":
		if cfg.Notification.Email.Host == "" || cfg.Notification.Email.To == "" {
			return fmt.Errorf("notification.email.host and notification.email.to are required when type is \"email\"")
		}
	default:
		return fmt.Errorf("unknown notification.type %q", cfg.Notification.Type)
	}

	switch cfg.Store.Backend {
	case "file", "sqlite":
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required when backend is \"redis\"")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	return nil
}
