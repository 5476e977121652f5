// Package config loads the pipeline configuration from the environment,
// with an optional YAML file overlay below it (ANSERA_CONFIG). A missing
// API key is not a load error; the pipeline aborts on it at run time so
// the host search keeps working.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	Trigger      string `yaml:"trigger"`
	QuickTrigger string `yaml:"quick_trigger"`

	ResultsForSelection int `yaml:"results_for_selection"`
	SelectK             int `yaml:"select_k"`
	FetchK              int `yaml:"fetch_k"`

	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	SelectTimeout    time.Duration `yaml:"select_timeout"`
	SummarizeTimeout time.Duration `yaml:"summarize_timeout"`
	QuickTimeout     time.Duration `yaml:"quick_timeout"`

	FetchMaxBytes   int64  `yaml:"fetch_max_bytes"`
	ExtractMaxChars int    `yaml:"extract_max_chars"`
	UserAgent       string `yaml:"user_agent"`
}

func defaults() *Config {
	return &Config{
		BaseURL:             "https://api.openai.com/v1",
		Model:               "gpt-4o-mini",
		Trigger:             "!!sum",
		QuickTrigger:        "!!ask",
		ResultsForSelection: 40,
		SelectK:             12,
		FetchK:              7,
		FetchTimeout:        4 * time.Second,
		SelectTimeout:       7 * time.Second,
		SummarizeTimeout:    12 * time.Second,
		QuickTimeout:        5 * time.Second,
		FetchMaxBytes:       700000,
		ExtractMaxChars:     9000,
		UserAgent:           "Mozilla/5.0 (compatible; Ansera/1.0)",
	}
}

// Load builds the config from defaults, then the optional YAML file named
// by ANSERA_CONFIG, then the environment on top.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ANSERA_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.APIKey = envString("OPENAI_API_KEY", cfg.APIKey)
	cfg.BaseURL = envString("OPENAI_BASE_URL", cfg.BaseURL)
	cfg.Model = envString("OPENAI_MODEL", cfg.Model)
	cfg.Trigger = envString("AI_TRIGGER", cfg.Trigger)
	cfg.QuickTrigger = envString("AI_QUICK_TRIGGER", cfg.QuickTrigger)
	cfg.UserAgent = envString("UA", cfg.UserAgent)

	var err error
	if cfg.ResultsForSelection, err = envInt("RESULTS_FOR_SELECTION", cfg.ResultsForSelection); err != nil {
		return nil, err
	}
	if cfg.SelectK, err = envInt("SELECT_K", cfg.SelectK); err != nil {
		return nil, err
	}
	if cfg.FetchK, err = envInt("FETCH_K", cfg.FetchK); err != nil {
		return nil, err
	}
	if cfg.ExtractMaxChars, err = envInt("EXTRACT_MAX_CHARS", cfg.ExtractMaxChars); err != nil {
		return nil, err
	}
	if cfg.FetchMaxBytes, err = envInt64("FETCH_MAX_BYTES", cfg.FetchMaxBytes); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = envSeconds("FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.SelectTimeout, err = envSeconds("SELECT_TIMEOUT", cfg.SelectTimeout); err != nil {
		return nil, err
	}
	if cfg.SummarizeTimeout, err = envSeconds("SUMMARIZE_TIMEOUT", cfg.SummarizeTimeout); err != nil {
		return nil, err
	}
	if cfg.QuickTimeout, err = envSeconds("QUICK_TIMEOUT", cfg.QuickTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// envSeconds parses a float number of seconds, matching how the timeout
// variables are documented.
func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}
