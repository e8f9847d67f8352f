package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/aggregate"
	"github.com/mikiest/github-dashboard/internal/config"
	"github.com/mikiest/github-dashboard/internal/github"
	"github.com/mikiest/github-dashboard/internal/logger"
)

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger
	gh  *github.Client
	svc *aggregate.Service
}

// setup loads .env, the config file and the environment, initialises logging
// and builds the GitHub client and aggregation service.
func setup(ctx context.Context) (*app, error) {
	// Load .env if present (ignored if missing)
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ghdash config init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Init(cfg.IsDevelopment() || verbose); err != nil {
		return nil, fmt.Errorf("initialising logger: %w", err)
	}
	log := logger.L()

	token, err := resolveToken(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	gh := github.NewClient(token, github.Options{
		BaseURL:       cfg.GitHubAPIURL,
		BatchSize:     cfg.BatchSize,
		PRConcurrency: cfg.PRConcurrency,
		Logger:        log.Named("github"),
	})
	svc := aggregate.NewService(gh, aggregate.Options{
		PRLimitPerRepo:     cfg.PRLimitPerRepo,
		StaleDays:          cfg.StaleDays,
		TopN:               cfg.TopN,
		ActivityMaxAgeDays: cfg.ActivityMaxAgeDays,
	}, log.Named("aggregate"))

	return &app{cfg: cfg, log: log, gh: gh, svc: svc}, nil
}

// resolveToken prefers the configured token and falls back to the gh CLI.
func resolveToken(ctx context.Context, cfg *config.Config, log *zap.Logger) (string, error) {
	if cfg.GitHubToken != "" {
		return cfg.GitHubToken, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	token, err := github.TokenFromCLI(ctx)
	if err != nil {
		return "", errors.Join(
			errors.New("no GitHub token: set GITHUB_TOKEN or run `gh auth login`"),
			err,
		)
	}
	log.Debug("using token from gh CLI")
	return token, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
