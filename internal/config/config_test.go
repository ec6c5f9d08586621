package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
searches:
  - "https://board.example/listings?q=backend+golang"
  - "https://board.example/listings?q=platform+engineer"

profile:
  text: "Senior backend engineer, Go, distributed systems."
  criteria: "remote only"

scan:
  concurrency: 2
  max_deep_scans: 15
  job_timeout: 3m
  batch_pause: 1s
  target_pause: 2s
  min_match_score: 0.75

ai:
  enabled: true
  model: gpt-4o-mini
  api_key: ${JOBSCOUT_TEST_API_KEY}
  timeout: 20s

notification:
  type: log

store:
  backend: sqlite
  path: /tmp/jobscout.db

daemon:
  scan_schedule: "0 */6 * * *"
  digest_schedule: "0 8 * * *"
`

func TestLoad_Valid(t *testing.T) {
	t.Setenv("JOBSCOUT_TEST_API_KEY", "sk-test-123")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Searches) != 2 {
		t.Errorf("expected 2 searches, got %d", len(cfg.Searches))
	}
	if cfg.Scan.Concurrency != 2 || cfg.Scan.MaxDeepScans != 15 {
		t.Errorf("unexpected scan config: %+v", cfg.Scan)
	}
	if cfg.Scan.JobTimeout != 3*time.Minute {
		t.Errorf("expected job_timeout 3m, got %v", cfg.Scan.JobTimeout)
	}
	if cfg.Scan.MinMatchScore != 0.75 {
		t.Errorf("expected min_match_score 0.75, got %v", cfg.Scan.MinMatchScore)
	}
	if cfg.AI.APIKey != "sk-test-123" {
		t.Errorf("expected env-expanded api key, got %q", cfg.AI.APIKey)
	}
	if cfg.AI.BaseURL != defaultOpenAIBaseURL {
		t.Errorf("expected default base URL, got %q", cfg.AI.BaseURL)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/jobscout.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Daemon.ScanSchedule != "0 */6 * * *" {
		t.Errorf("unexpected daemon config: %+v", cfg.Daemon)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
searches:
  - "https://board.example/listings?q=backend"
profile:
  text: "engineer"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Scan.Concurrency != 3 {
		t.Errorf("expected default concurrency 3, got %d", cfg.Scan.Concurrency)
	}
	if cfg.Scan.MaxDeepScans != 10 {
		t.Errorf("expected default max_deep_scans 10, got %d", cfg.Scan.MaxDeepScans)
	}
	if cfg.Scan.JobTimeout != 5*time.Minute {
		t.Errorf("expected default job_timeout 5m, got %v", cfg.Scan.JobTimeout)
	}
	if cfg.Scan.MinMatchScore != 0.7 {
		t.Errorf("expected default min_match_score 0.7, got %v", cfg.Scan.MinMatchScore)
	}
	if cfg.Store.Backend != "file" || cfg.Store.Path != "jobindex.json" {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
}

func TestLoad_ProfileFromFile(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profile.md")
	if err := os.WriteFile(profilePath, []byte("Go engineer profile"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, `
searches:
  - "https://board.example/listings?q=backend"
profile:
  path: `+profilePath+`
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := cfg.Profile.ProfileText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Go engineer profile" {
		t.Errorf("unexpected profile text: %q", text)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no searches",
			content: "profile:\n  text: x\n",
			wantErr: "at least one search URL",
		},
		{
			name:    "bad search scheme",
			content: "searches:\n  - \"ftp://nope\"\nprofile:\n  text: x\n",
			wantErr: "must be http(s)",
		},
		{
			name:    "no profile",
			content: "searches:\n  - \"https://board.example/l\"\n",
			wantErr: "profile.text or profile.path",
		},
		{
			name:    "slack without webhook",
			content: "searches:\n  - \"https://board.example/l\"\nprofile:\n  text: x\nnotification:\n  type: slack\n",
			wantErr: "webhook_url is required",
		},
		{
			name:    "email without host",
			content: "searches:\n  - \"https://board.example/l\"\nprofile:\n  text: x\nnotification:\n  type: email\n",
			wantErr: "notification.email.host",
		},
		{
			name:    "redis without addr",
			content: "searches:\n  - \"https://board.example/l\"\nprofile:\n  text: x\nstore:\n  backend: redis\n",
			wantErr: "store.redis.addr",
		},
		{
			name:    "ai enabled without key",
			content: "searches:\n  - \"https://board.example/l\"\nprofile:\n  text: x\nai:\n  enabled: true\n  model: gpt-4o-mini\n",
			wantErr: "ai.api_key is required",
		},
		{
			name:    "unknown backend",
			content: "searches:\n  - \"https://board.example/l\"\nprofile:\n  text: x\nstore:\n  backend: dynamo\n",
			wantErr: "unknown store.backend",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
searches:
  - "https://board.example/l"
profile:
  text: x
scan:
  job_timeout: soon
`))
	if err == nil || !strings.Contains(err.Error(), "scan.job_timeout") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}
