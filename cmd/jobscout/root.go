package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwarner/jobscout/internal/config"
	"github.com/mwarner/jobscout/internal/digest"
	"github.com/mwarner/jobscout/internal/index"
	"github.com/mwarner/jobscout/internal/model"
	"github.com/mwarner/jobscout/internal/notifier"
	"github.com/mwarner/jobscout/internal/ratelimit"
	"github.com/mwarner/jobscout/internal/retry"
	"github.com/mwarner/jobscout/internal/scan"
	"github.com/mwarner/jobscout/internal/score"
	"github.com/mwarner/jobscout/internal/search"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Scan job boards and surface the postings worth your time",
	Long:  "Jobscout walks saved job searches, deep-scans each posting against your profile, and emails a digest of the matches.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSCOUT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSCOUT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSCOUT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildStore opens the configured index backend. The returned close func is
// a no-op for backends without a connection to release.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (index.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := index.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using sqlite index store", "path", cfg.Store.Path)
		return st, func() { st.Close() }, nil
	case "redis":
		st, err := index.NewRedisStore(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using redis index store", "addr", cfg.Store.Redis.Addr)
		return st, func() { st.Close() }, nil
	default:
		logger.Debug("using file index store", "path", cfg.Store.Path)
		return index.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

func buildNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case "email":
		logger.Info("using email notifier", "to", cfg.Notification.Email.To)
		return notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.Notification.Email.Host,
			Port:     cfg.Notification.Email.Port,
			From:     cfg.Notification.Email.From,
			To:       cfg.Notification.Email.To,
			Username: cfg.Notification.Email.Username,
			Password: cfg.Notification.Email.Password,
		}, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// app is the wired object graph behind every command.
type app struct {
	cfg    *config.Config
	orch   *scan.Orchestrator
	gate   *digest.Gate
	store  index.Store
	logger *slog.Logger
	close  func()
}

// buildApp loads config and wires the full collaborator graph.
func buildApp(ctx context.Context) (*app, error) {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	profile, err := cfg.Profile.ProfileText()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var provider model.ScoringProvider
	if cfg.AI.Enabled {
		aiClient := &http.Client{Timeout: cfg.AI.Timeout}
		provider = score.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, aiClient)
		logger.Info("llm scoring enabled", "model", cfg.AI.Model)
	} else {
		logger.Info("llm scoring disabled, using keyword fallback")
	}
	scorer := score.NewScorer(provider, logger)

	var fetcher model.PageFetcher = search.NewPageClient(httpClient, logger)
	fetcher = retry.NewFetcher(fetcher, cfg.Daemon.RetryMax, cfg.Daemon.RetryBaseDelay, logger)
	fetcher = ratelimit.NewFetcher(fetcher, ratelimit.NewHostLimiter(cfg.Daemon.HostMinDelay))

	pool := scan.NewPool(fetcher, scorer, cfg.Scan.Concurrency, cfg.Scan.JobTimeout, cfg.Scan.BatchPause, logger)

	n := buildNotifier(cfg, httpClient, logger)
	gate := digest.NewGate(store, n, logger)

	orch := scan.NewOrchestrator(
		search.NewClient(httpClient, logger),
		pool,
		store,
		gate,
		n,
		scan.Options{
			SearchURLs:    cfg.Searches,
			Profile:       profile,
			Criteria:      cfg.Profile.Criteria,
			MaxDeepScans:  cfg.Scan.MaxDeepScans,
			TargetPause:   cfg.Scan.TargetPause,
			MinMatchScore: cfg.Scan.MinMatchScore,
		},
		logger,
	)

	return &app{
		cfg:    cfg,
		orch:   orch,
		gate:   gate,
		store:  store,
		logger: logger,
		close:  closeStore,
	}, nil
}
