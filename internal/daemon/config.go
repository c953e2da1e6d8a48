// Package daemon manages the simulator runtime and its configuration.
package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tutu-network/wgsim/internal/infra/mesh"
)

// Config holds all daemon configuration.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	API        APIConfig        `toml:"api"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Health     HealthConfig     `toml:"health"`
	Logging    LoggingConfig    `toml:"logging"`
	History    HistoryConfig    `toml:"history"`
}

// SimulationConfig controls engine timing and randomness.
type SimulationConfig struct {
	Seed              uint64  `toml:"seed"`
	PollInterval      string  `toml:"poll_interval"`
	KeepaliveInterval string  `toml:"keepalive_interval"`
	TimeScale         float64 `toml:"time_scale"`
	Settle            string  `toml:"settle"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// HealthConfig controls the periodic mesh checks.
type HealthConfig struct {
	Interval    string `toml:"interval"`
	AutoRecover bool   `toml:"auto_recover"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// HistoryConfig controls the run-history store.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Simulation: SimulationConfig{
			PollInterval:      mesh.DefaultPollInterval.String(),
			KeepaliveInterval: mesh.DefaultKeepaliveInterval.String(),
			TimeScale:         mesh.DefaultTimeScale,
			Settle:            "2s",
		},
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7070,
			CORSOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Health: HealthConfig{
			Interval: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     wgsimHome(),
		},
	}
}

// LoadConfig reads config from ~/.wgsim/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(wgsimHome(), "config.toml"))
}

// LoadConfigFile reads config from path, falling back to defaults when the
// file does not exist.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = wgsimHome()
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.wgsim/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(wgsimHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// MeshConfig converts the simulation section into engine settings.
// Logger and Recorder are left for the caller.
func (c Config) MeshConfig() mesh.Config {
	return mesh.Config{
		PollInterval:      parseDuration(c.Simulation.PollInterval, mesh.DefaultPollInterval),
		KeepaliveInterval: parseDuration(c.Simulation.KeepaliveInterval, mesh.DefaultKeepaliveInterval),
		TimeScale:         c.Simulation.TimeScale,
		Seed:              c.Simulation.Seed,
	}
}

// SettleDuration is how long commands wait for handshakes to converge.
func (c Config) SettleDuration() time.Duration {
	return parseDuration(c.Simulation.Settle, 2*time.Second)
}

// HealthInterval is the time between two health check rounds.
func (c Config) HealthInterval() time.Duration {
	return parseDuration(c.Health.Interval, 10*time.Second)
}

// NewLogger builds the process logger from the logging section.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Logging.Level)}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// wgsimHome returns the wgsim data directory.
func wgsimHome() string {
	if env := os.Getenv("WGSIM_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wgsim")
}

// Home is exported for use by other packages.
func Home() string {
	return wgsimHome()
}
