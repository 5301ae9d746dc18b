// Package config loads runtime settings from a JSON file with env
// overrides for the secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Addr        string `json:"addr"`
	DBPath      string `json:"db_path"`
	BotToken    string `json:"bot_token"`
	PollTimeout int    `json:"poll_timeout_seconds"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the config file at path, falling back to defaults when the
// file is absent. The bot token can always be supplied via
// GOALBOARD_BOT_TOKEN instead of the file.
func Load(path string) (Config, error) {
	cfg := Config{
		Addr:        ":8080",
		DBPath:      "goalboard.db",
		PollTimeout: 30,
	}

	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("open config %s: %w", path, err)
	}

	cfg.BotToken = getEnv("GOALBOARD_BOT_TOKEN", cfg.BotToken)
	return cfg, nil
}
