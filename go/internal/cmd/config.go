package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed tuning surface. Credentials and connection
// endpoints come from the environment, pipeline tuning from the file.
type Config struct {
	Ingest struct {
		Competitions []string `yaml:"competitions"`
		PollInterval string   `yaml:"poll_interval"`
		WindowBack   string   `yaml:"window_back"`
		WindowAhead  string   `yaml:"window_ahead"`
		Shards       int      `yaml:"shards"`
	} `yaml:"ingest"`

	Coordination struct {
		LeaseTTL         string `yaml:"lease_ttl"`
		MaxCommitRetries int    `yaml:"max_commit_retries"`
	} `yaml:"coordination"`

	Queue struct {
		Capacity int `yaml:"capacity"`
		LowWater int `yaml:"low_water"`
	} `yaml:"queue"`

	Messaging struct {
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"messaging"`

	Health struct {
		StaleFetchAfter string `yaml:"stale_fetch_after"`
	} `yaml:"health"`

	Prediction struct {
		ChatModel         string `yaml:"chat_model"`
		EmbedModel        string `yaml:"embed_model"`
		MaxContextMatches int    `yaml:"max_context_matches"`
	} `yaml:"prediction"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// duration parses a config duration string, falling back when empty or
// invalid.
func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
