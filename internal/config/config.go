package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "dashboard.yml"

type Config struct {
	GitHubToken        string   `yaml:"github_token,omitempty" koanf:"github_token"`
	GitHubAPIURL       string   `yaml:"github_api_url" koanf:"github_api_url"`
	Port               string   `yaml:"port" koanf:"port"`
	Env                string   `yaml:"env" koanf:"env"`
	RedisURL           string   `yaml:"redis_url,omitempty" koanf:"redis_url"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" koanf:"rate_limit_per_minute"`
	PostHogAPIKey      string   `yaml:"posthog_api_key,omitempty" koanf:"posthog_api_key"`
	AllowedOrigins     []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	BatchSize          int      `yaml:"batch_size" koanf:"batch_size"`
	PRLimitPerRepo     int      `yaml:"pr_limit_per_repo" koanf:"pr_limit_per_repo"`
	PRConcurrency      int      `yaml:"pr_concurrency" koanf:"pr_concurrency"`
	StaleDays          int      `yaml:"stale_days" koanf:"stale_days"`
	TopN               int      `yaml:"top_n" koanf:"top_n"`
	ActivityMaxAgeDays int      `yaml:"activity_max_age_days" koanf:"activity_max_age_days"`
}

func Default() *Config {
	return &Config{
		GitHubAPIURL:       "https://api.github.com",
		Port:               "5174",
		Env:                "production",
		RateLimitPerMinute: 300,
		AllowedOrigins:     []string{"*"},
		BatchSize:          8,
		PRLimitPerRepo:     50,
		PRConcurrency:      6,
		StaleDays:          14,
		TopN:               3,
		ActivityMaxAgeDays: 90,
	}
}

// envKeys maps the recognised environment variables to config keys. Anything
// else in the environment, and any empty variable, is ignored.
var envKeys = map[string]string{
	"GITHUB_TOKEN":          "github_token",
	"GITHUB_API_URL":        "github_api_url",
	"PORT":                  "port",
	"ENV":                   "env",
	"REDIS_URL":             "redis_url",
	"RATE_LIMIT_PER_MINUTE": "rate_limit_per_minute",
	"POSTHOG_API_KEY":       "posthog_api_key",
	"ALLOWED_ORIGINS":       "allowed_origins",
	"BATCH_SIZE":            "batch_size",
	"PR_LIMIT_PER_REPO":     "pr_limit_per_repo",
	"PR_CONCURRENCY":        "pr_concurrency",
	"STALE_DAYS":            "stale_days",
	"TOP_N":                 "top_n",
	"ACTIVITY_MAX_AGE_DAYS": "activity_max_age_days",
}

// Load starts from Default, overlays the YAML file at path if it exists, then
// the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.GitHubAPIURL == "" {
		errs = append(errs, errors.New("github_api_url is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	positive := []struct {
		key string
		val int
	}{
		{"rate_limit_per_minute", c.RateLimitPerMinute},
		{"batch_size", c.BatchSize},
		{"pr_limit_per_repo", c.PRLimitPerRepo},
		{"pr_concurrency", c.PRConcurrency},
		{"stale_days", c.StaleDays},
		{"top_n", c.TopN},
		{"activity_max_age_days", c.ActivityMaxAgeDays},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive (got %d)", p.key, p.val))
		}
	}
	if c.PRLimitPerRepo > 100 {
		errs = append(errs, fmt.Errorf("pr_limit_per_repo must be at most 100 (got %d)", c.PRLimitPerRepo))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// splitOrigins flattens comma-separated entries so ALLOWED_ORIGINS can be
// given either as a YAML list or as "a,b".
func splitOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
