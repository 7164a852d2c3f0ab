package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all statflow server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath             string `json:"db_path"`
	LogLevel           string `json:"log_level"`
	PoolSize           int    `json:"pool_size"`
	HistorySize        int    `json:"history_size"`
	SupervisorInterval int    `json:"supervisor_interval_seconds"`
	Scheduler          bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		DBPath:             filepath.Join(statflowDir(), "statflow.db"),
		LogLevel:           "info",
		PoolSize:           4,
		HistorySize:        100,
		SupervisorInterval: 5,
		Scheduler:          true,
	}
}

func statflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".statflow"
	}
	return filepath.Join(home, ".statflow")
}

func settingsPath() string {
	return filepath.Join(statflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("STATFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STATFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STATFLOW_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("STATFLOW_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistorySize = n
		}
	}
	if v := os.Getenv("STATFLOW_SUPERVISOR_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SupervisorInterval = n
		}
	}
	if v := os.Getenv("STATFLOW_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}
