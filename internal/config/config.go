package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the crewcall.toml key mapping to bot runtime settings.
type Config struct {
	Token          string   `toml:"token"`
	Prefix         string   `toml:"prefix"`
	LivingChannel  string   `toml:"living_channel"`
	DeadChannel    string   `toml:"dead_channel"`
	SpectatorRole  string   `toml:"spectator_role"`
	Owners         []string `toml:"owners"`
	DeafenMuted    bool     `toml:"deafen_muted"`
	StartDelaySecs int      `toml:"start_delay_seconds"`
	SettleSecs     int      `toml:"settle_delay_seconds"`

	Capture CaptureConfig `toml:"capture"`
}

// CaptureConfig configures the observed game-state ingest socket.
type CaptureConfig struct {
	Enabled     bool   `toml:"enabled"`
	Addr        string `toml:"addr"`
	AuthToken   string `toml:"auth_token"`
	ConnectCode string `toml:"connect_code"`
}

func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "~"
	}
	if cfg.StartDelaySecs == 0 {
		cfg.StartDelaySecs = 5
	}
	if cfg.SettleSecs == 0 {
		cfg.SettleSecs = 5
	}
	if cfg.Capture.Addr == "" {
		cfg.Capture.Addr = ":8123"
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Token) == "" {
		return fmt.Errorf("config invalid: missing token")
	}
	if strings.TrimSpace(cfg.LivingChannel) == "" {
		return fmt.Errorf("config invalid: missing living_channel")
	}
	if strings.TrimSpace(cfg.DeadChannel) == "" {
		return fmt.Errorf("config invalid: missing dead_channel")
	}
	if cfg.LivingChannel == cfg.DeadChannel {
		return fmt.Errorf("config invalid: living_channel and dead_channel must differ")
	}
	if cfg.Capture.Enabled && strings.TrimSpace(cfg.Capture.AuthToken) == "" {
		return fmt.Errorf("config invalid: capture.auth_token required when capture.enabled")
	}
	return nil
}

// StartDelay is the wait before the initial round mute is applied.
func (c Config) StartDelay() time.Duration {
	return time.Duration(c.StartDelaySecs) * time.Second
}

// SettleDelay is the wait before judging round conclusion after a meeting.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleSecs) * time.Second
}
