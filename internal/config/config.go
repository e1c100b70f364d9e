// Package config handles loading and validating dayshift configuration.
// Supports YAML config files, environment variable overrides, and live
// reload for the daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marcus/dayshift/internal/calendar"
	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/provider"
	"github.com/marcus/dayshift/internal/recommend"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

// Config holds all dayshift configuration.
type Config struct {
	Owner string `mapstructure:"owner"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Logging struct {
		Level         string `mapstructure:"level"`
		Path          string `mapstructure:"path"`
		Format        string `mapstructure:"format"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"logging"`

	Provider struct {
		BaseURL            string `mapstructure:"base_url"`
		APIKey             string `mapstructure:"api_key"`
		Model              string `mapstructure:"model"`
		TranscriptionModel string `mapstructure:"transcription_model"`
		TimeoutMS          int    `mapstructure:"timeout_ms"`
	} `mapstructure:"provider"`

	Orchestrator struct {
		TimeoutSeconds   int `mapstructure:"timeout_seconds"`
		MaxRetries       int `mapstructure:"max_retries"`
		BackoffMS        int `mapstructure:"backoff_ms"`
		ResultTTLSeconds int `mapstructure:"result_ttl_seconds"`
	} `mapstructure:"orchestrator"`

	Scoring struct {
		UrgencyWeight        float64            `mapstructure:"urgency_weight"`
		ImportanceWeight     float64            `mapstructure:"importance_weight"`
		EffortWeight         float64            `mapstructure:"effort_weight"`
		DomainWeight         float64            `mapstructure:"domain_weight"`
		DomainWeights        map[string]float64 `mapstructure:"domain_weights"`
		TypicalDurationMin   int                `mapstructure:"typical_duration_min"`
		ProximityHorizonDays int                `mapstructure:"proximity_horizon_days"`
	} `mapstructure:"scoring"`

	Recommend struct {
		TopK                   int     `mapstructure:"top_k"`
		EnergyPenalty          float64 `mapstructure:"energy_penalty"`
		LocationPenalty        float64 `mapstructure:"location_penalty"`
		MissingEstimatePenalty float64 `mapstructure:"missing_estimate_penalty"`
	} `mapstructure:"recommend"`

	Calendar struct {
		Enabled         bool   `mapstructure:"enabled"`
		CredentialsFile string `mapstructure:"credentials_file"`
		TokenFile       string `mapstructure:"token_file"`
		CalendarID      string `mapstructure:"calendar_id"`
		AuthPort        string `mapstructure:"auth_port"`
	} `mapstructure:"calendar"`

	Templates struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"templates"`
}

// DefaultDir returns the config directory.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dayshift")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("dayshift")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
	}

	v.SetEnvPrefix("DAYSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "dayshift")

	v.SetDefault("owner", "default")
	v.SetDefault("database.path", filepath.Join(dataDir, "dayshift.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", filepath.Join(dataDir, "logs"))
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.retention_days", 7)

	v.SetDefault("provider.model", "gpt-4o-mini")
	v.SetDefault("provider.transcription_model", "whisper-1")
	v.SetDefault("provider.timeout_ms", 60000)

	orch := orchestrator.DefaultConfig()
	v.SetDefault("orchestrator.timeout_seconds", int(orch.Timeout.Seconds()))
	v.SetDefault("orchestrator.max_retries", orch.MaxRetries)
	v.SetDefault("orchestrator.backoff_ms", int(orch.Backoff.Milliseconds()))
	v.SetDefault("orchestrator.result_ttl_seconds", int(orch.ResultTTL.Seconds()))

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.urgency_weight", sc.Weights.Urgency)
	v.SetDefault("scoring.importance_weight", sc.Weights.Importance)
	v.SetDefault("scoring.effort_weight", sc.Weights.Effort)
	v.SetDefault("scoring.domain_weight", sc.Weights.Domain)
	domains := make(map[string]float64, len(sc.DomainWeights))
	for d, w := range sc.DomainWeights {
		domains[string(d)] = w
	}
	v.SetDefault("scoring.domain_weights", domains)
	v.SetDefault("scoring.typical_duration_min", sc.TypicalDurationMin)
	v.SetDefault("scoring.proximity_horizon_days", sc.ProximityHorizonDays)

	rc := recommend.DefaultConfig()
	v.SetDefault("recommend.top_k", rc.TopK)
	v.SetDefault("recommend.energy_penalty", rc.EnergyPenalty)
	v.SetDefault("recommend.location_penalty", rc.LocationPenalty)
	v.SetDefault("recommend.missing_estimate_penalty", rc.MissingEstimatePenalty)

	gc := calendar.DefaultGoogleConfig()
	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.credentials_file", gc.CredentialsFile)
	v.SetDefault("calendar.token_file", gc.TokenFile)
	v.SetDefault("calendar.calendar_id", gc.CalendarID)
	v.SetDefault("calendar.auth_port", gc.AuthPort)

	v.SetDefault("templates.enabled", true)
}

// Load reads configuration from file and environment. A missing config
// file is fine; defaults and env vars apply.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("reading config: %w", err)
}

// Watch loads the config and reloads it on file changes, calling fn
// with each valid new config. Invalid edits are logged and skipped.
func Watch(path string, fn func(*Config)) (*Config, error) {
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.Component("config")
	v.OnConfigChange(func(ev fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			logger.ErrorCtx("config reload failed", map[string]any{"error": err.Error()})
			return
		}
		if err := next.Validate(); err != nil {
			logger.ErrorCtx("config reload rejected", map[string]any{"error": err.Error()})
			return
		}
		logger.InfoCtx("config reloaded", map[string]any{"file": ev.Name})
		fn(&next)
	})
	v.WatchConfig()

	return &cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside the
// system.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must be >= 0")
	}
	if c.Recommend.TopK < 0 {
		return fmt.Errorf("recommend.top_k must be >= 0")
	}
	for name, w := range c.Scoring.DomainWeights {
		if !tasks.ValidDomain(tasks.Domain(name)) {
			return fmt.Errorf("scoring.domain_weights: unknown domain %q", name)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("scoring.domain_weights.%s must be in [0,1]", name)
		}
	}
	return nil
}

// LoggingConfig converts to the logging package's config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Path:          c.Logging.Path,
		Format:        c.Logging.Format,
		RetentionDays: c.Logging.RetentionDays,
	}
}

// ProviderConfig converts to the provider package's config.
func (c *Config) ProviderConfig() provider.OpenAIConfig {
	return provider.OpenAIConfig{
		BaseURL:            c.Provider.BaseURL,
		APIKey:             c.Provider.APIKey,
		Model:              c.Provider.Model,
		TranscriptionModel: c.Provider.TranscriptionModel,
		TimeoutMS:          c.Provider.TimeoutMS,
	}
}

// OrchestratorConfig converts to the orchestrator package's config.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Timeout:    time.Duration(c.Orchestrator.TimeoutSeconds) * time.Second,
		MaxRetries: c.Orchestrator.MaxRetries,
		Backoff:    time.Duration(c.Orchestrator.BackoffMS) * time.Millisecond,
		ResultTTL:  time.Duration(c.Orchestrator.ResultTTLSeconds) * time.Second,
	}
}

// ScoringConfig converts to the scoring package's config.
func (c *Config) ScoringConfig() scoring.Config {
	domains := make(map[tasks.Domain]float64, len(c.Scoring.DomainWeights))
	for name, w := range c.Scoring.DomainWeights {
		domains[tasks.Domain(name)] = w
	}
	return scoring.Config{
		Weights: scoring.Weights{
			Urgency:    c.Scoring.UrgencyWeight,
			Importance: c.Scoring.ImportanceWeight,
			Effort:     c.Scoring.EffortWeight,
			Domain:     c.Scoring.DomainWeight,
		},
		DomainWeights:        domains,
		TypicalDurationMin:   c.Scoring.TypicalDurationMin,
		ProximityHorizonDays: c.Scoring.ProximityHorizonDays,
	}
}

// RecommendConfig converts to the recommend package's config.
func (c *Config) RecommendConfig() recommend.Config {
	return recommend.Config{
		TopK:                   c.Recommend.TopK,
		EnergyPenalty:          c.Recommend.EnergyPenalty,
		LocationPenalty:        c.Recommend.LocationPenalty,
		MissingEstimatePenalty: c.Recommend.MissingEstimatePenalty,
	}
}

// CalendarConfig converts to the calendar package's config.
func (c *Config) CalendarConfig() calendar.GoogleConfig {
	return calendar.GoogleConfig{
		CredentialsFile: c.Calendar.CredentialsFile,
		TokenFile:       c.Calendar.TokenFile,
		CalendarID:      c.Calendar.CalendarID,
		AuthPort:        c.Calendar.AuthPort,
	}
}
