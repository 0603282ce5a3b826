package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/tabplay-go/internal/schedule"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// Config holds all tabplay settings.
type Config struct {
	// Playback
	Tuning         string  `yaml:"tuning"`
	TempoBPM       float64 `yaml:"tempo_bpm"`
	NoteValue      int     `yaml:"note_value"` // 4 = quarter, 8 = eighth
	Spacing        string  `yaml:"spacing"`    // even, columns
	ColumnsPerStep int     `yaml:"columns_per_step"`
	Loop           bool    `yaml:"loop"`
	Metronome      bool    `yaml:"metronome"`
	// MultiDigitFrets reads a run of digits as one fret ("12" is fret 12)
	// instead of one fret per character.
	MultiDigitFrets bool `yaml:"multi_digit_frets"`

	Audio   AudioConfig   `yaml:"audio"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	Volume     float64 `yaml:"volume"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Tuning:         "standard",
		TempoBPM:       120,
		NoteValue:      8,
		Spacing:        "even",
		ColumnsPerStep: 3,
		Audio: AudioConfig{
			SampleRate: 48000,
			Volume:     1,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TABPLAY_TUNING"); v != "" {
		c.Tuning = v
	}
	if v := os.Getenv("TABPLAY_TEMPO"); v != "" {
		bpm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TABPLAY_TEMPO: %w", err)
		}
		c.TempoBPM = bpm
	}
	if v := os.Getenv("TABPLAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks every field a player needs. An unknown tuning comes back as
// a *tuning.ConfigError.
func (c *Config) Validate() error {
	if _, err := tuning.Lookup(c.Tuning); err != nil {
		return err
	}
	if !(c.TempoBPM > 0) {
		return schedule.ErrTempo
	}
	if err := schedule.CheckNoteValue(c.NoteValue); err != nil {
		return fmt.Errorf("note_value: %w", err)
	}
	if _, err := schedule.ParseSpacing(c.Spacing); err != nil {
		return err
	}
	if c.ColumnsPerStep <= 0 {
		return fmt.Errorf("columns_per_step must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	return nil
}

// ParseOptions returns the tab reading mode.
func (c *Config) ParseOptions() tab.ParseOptions {
	return tab.ParseOptions{MultiDigit: c.MultiDigitFrets}
}

// Timing returns the rhythm settings. Call Validate first.
func (c *Config) Timing() schedule.Timing {
	spacing, _ := schedule.ParseSpacing(c.Spacing)
	return schedule.Timing{NoteValue: c.NoteValue, Spacing: spacing, ColumnsPerStep: c.ColumnsPerStep}
}
