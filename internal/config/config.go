package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" toml:"port"`
	} `yaml:"server" toml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Password string `yaml:"password" toml:"password"`
		DB       int    `yaml:"db" toml:"db"`
		TTL      string `yaml:"ttl" toml:"ttl"`
	} `yaml:"redis" toml:"redis"`
	Postgres struct {
		URL string `yaml:"url" toml:"url"`
	} `yaml:"postgres" toml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"sqlite" toml:"sqlite"`
	Bank struct {
		Dir string `yaml:"dir" toml:"dir"`
		TTL string `yaml:"ttl" toml:"ttl"`
	} `yaml:"bank" toml:"bank"`
	Session struct {
		IdleTTL string `yaml:"idle_ttl" toml:"idle_ttl"`
	} `yaml:"session" toml:"session"`
	Competition struct {
		Duration        string `yaml:"duration" toml:"duration"`
		QuestionCap     int    `yaml:"question_cap" toml:"question_cap"`
		PerSpecialtyCap int    `yaml:"per_specialty_cap" toml:"per_specialty_cap"`
	} `yaml:"competition" toml:"competition"`
	Exam struct {
		Duration     string         `yaml:"duration" toml:"duration"`
		Sections     int            `yaml:"sections" toml:"sections"`
		SectionSize  int            `yaml:"section_size" toml:"section_size"`
		PassingScore float64        `yaml:"passing_score" toml:"passing_score"`
		Distribution map[string]int `yaml:"distribution" toml:"distribution"`
		Breaks       []string       `yaml:"breaks" toml:"breaks"`
	} `yaml:"exam" toml:"exam"`
	Leaderboard struct {
		Limit int `yaml:"limit" toml:"limit"`
	} `yaml:"leaderboard" toml:"leaderboard"`
}

// Default returns the built-in settings: 10 minute competitions capped at 50
// questions (10 per specialty), one-hour 4x30 simulations passed at 70%.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Redis.TTL = "10m"
	cfg.Bank.Dir = "data"
	cfg.Bank.TTL = "10m"
	cfg.Session.IdleTTL = "2h"
	cfg.Competition.Duration = "10m"
	cfg.Competition.QuestionCap = 50
	cfg.Competition.PerSpecialtyCap = 10
	cfg.Exam.Duration = "1h"
	cfg.Exam.Sections = 4
	cfg.Exam.SectionSize = 30
	cfg.Exam.PassingScore = 70
	cfg.Exam.Breaks = []string{"20m", "40m"}
	cfg.Leaderboard.Limit = 10
	return cfg
}

// Load reads config from path on top of Default. Files ending in .toml are
// decoded as TOML, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("decode toml %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode yaml %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil && os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Durations parses every entry of raw, skipping malformed ones.
func Durations(raw []string) []time.Duration {
	out := make([]time.Duration, 0, len(raw))
	for _, r := range raw {
		if d, err := time.ParseDuration(r); err == nil {
			out = append(out, d)
		}
	}
	return out
}
