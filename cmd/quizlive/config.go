package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, read from YAML with environment
// variable overrides on top.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Bank struct {
		Path string `yaml:"path"`
	} `yaml:"bank"`
	Mirror struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		MaxReconnects int    `yaml:"max_reconnects"`
	} `yaml:"mirror"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Bank.Path = "questions.yaml"
	config.Mirror.SubjectPrefix = "quiz.events"
	config.Mirror.MaxReconnects = -1
	config.Log.Level = "info"
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults plus env cover it.
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Bank.Path = getEnv("BANK_PATH", config.Bank.Path)
	config.Mirror.URL = getEnv("NATS_URL", config.Mirror.URL)
	config.Mirror.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", config.Mirror.SubjectPrefix)
	config.Mirror.MaxReconnects = getEnvAsInt("NATS_MAX_RECONNECTS", config.Mirror.MaxReconnects)
	config.Log.Level = getEnv("LOG_LEVEL", config.Log.Level)

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
