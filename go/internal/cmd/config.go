package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roastarena/roastarena/go/internal/models"
)

// Config is the game configuration loaded from a yaml file. Secrets
// and connection strings come from the environment instead.
type Config struct {
	Round struct {
		EntryFee         float64 `yaml:"entry_fee"`
		MaxPlayers       int     `yaml:"max_players"`
		MinPlayers       int     `yaml:"min_players"`
		TimerDurationSec int     `yaml:"timer_duration_sec"`
		JudgingDelaySec  int     `yaml:"judging_delay_sec"`
		HouseFeeFraction float64 `yaml:"house_fee_fraction"`
	} `yaml:"round"`

	Judge struct {
		Enabled    bool   `yaml:"enabled"`
		Model      string `yaml:"model"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"judge"`

	Orchestrator struct {
		AutoStartNextRound bool `yaml:"auto_start_next_round"`
		NextRoundDelaySec  int  `yaml:"next_round_delay_sec"`
	} `yaml:"orchestrator"`

	Payment struct {
		Mode string `yaml:"mode"` // required or trusted
	} `yaml:"payment"`

	Characters []models.JudgeCharacter `yaml:"characters"`
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

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	var c Config
	c.Round.EntryFee = 0.025
	c.Round.MaxPlayers = 8
	c.Round.MinPlayers = 2
	c.Round.TimerDurationSec = 120
	c.Round.JudgingDelaySec = 10
	c.Round.HouseFeeFraction = 0.05
	c.Judge.Enabled = true
	c.Judge.TimeoutSec = 15
	c.Orchestrator.AutoStartNextRound = true
	c.Orchestrator.NextRoundDelaySec = 30
	c.Payment.Mode = "trusted"
	return &c
}

func (c *Config) RoundSettings() models.RoundSettings {
	return models.RoundSettings{
		EntryFee:         c.Round.EntryFee,
		MaxPlayers:       c.Round.MaxPlayers,
		MinPlayers:       c.Round.MinPlayers,
		TimerDurationSec: c.Round.TimerDurationSec,
		JudgingDelaySec:  c.Round.JudgingDelaySec,
		HouseFeeFraction: c.Round.HouseFeeFraction,
	}
}

func (c *Config) JudgeTimeout() time.Duration {
	return time.Duration(c.Judge.TimeoutSec) * time.Second
}

func (c *Config) NextRoundDelay() time.Duration {
	return time.Duration(c.Orchestrator.NextRoundDelaySec) * time.Second
}
