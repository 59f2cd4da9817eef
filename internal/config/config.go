// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config carries everything the CLI needs to run.
type Config struct {
	// AgentURL is the websocket endpoint of the interview coach.
	AgentURL string `env:"MOCKMATE_AGENT_URL,required,notEmpty"`

	// GeminiAPIKey is used for post-session scoring. Optional; without it
	// sessions run but are not graded.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// ScoreModel overrides the grading model.
	ScoreModel string `env:"MOCKMATE_SCORE_MODEL"`

	// CameraDevice is the capture device (e.g. /dev/video0). Empty runs
	// audio-only.
	CameraDevice string `env:"MOCKMATE_CAMERA_DEVICE"`

	// StatsDB is the SQLite path for the practice history.
	StatsDB string `env:"MOCKMATE_STATS_DB" envDefault:"mockmate.db"`

	// Debug enables category-tagged stderr logging in the session engine.
	Debug bool `env:"MOCKMATE_DEBUG" envDefault:"false"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	// Missing .env is fine; the environment may be fully set already.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
