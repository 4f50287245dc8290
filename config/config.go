package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides, e.g.
// AGENTRELAY_TIMEOUTS_STREAM_TIMEOUT_SECONDS=180.
const envPrefix = "AGENTRELAY_"

// Config is the full runtime configuration surface consumed by the relay.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Timeouts   Timeouts         `koanf:"timeouts"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	HITL       HITLConfig       `koanf:"hitl"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig configures the listening socket.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Timeouts defines the three nested timeout scopes plus the narrower
// web-search sub-scope and the websocket heartbeat interval. All values are
// seconds.
//
// Required ordering, checked once at startup:
//
//	web_search <= tool < stream, and connection < stream.
//
// The connection scope applies to the request/response transport only; the
// persistent websocket transport is exempt and relies solely on the stream
// scope.
type Timeouts struct {
	ConnectionSeconds        int `koanf:"connection_timeout_seconds"`
	StreamSeconds            int `koanf:"stream_timeout_seconds"`
	ToolSeconds              int `koanf:"tool_timeout_seconds"`
	WebSearchSeconds         int `koanf:"web_search_timeout_seconds"`
	HeartbeatIntervalSeconds int `koanf:"heartbeat_interval_seconds"`
}

// CheckpointConfig configures the checkpoint store and the race guard.
//
// GraceWindowMS is deliberately configurable rather than a constant: longer
// windows hide more post-completion false positives but delay surfacing
// genuine errors that occur right after completion.
type CheckpointConfig struct {
	Path                 string `koanf:"path"`
	GraceWindowMS        int    `koanf:"grace_window_ms"`
	SweepIntervalSeconds int    `koanf:"sweep_interval_seconds"`
}

// HITLConfig gates human-in-the-loop pause events.
type HITLConfig struct {
	Enabled bool `koanf:"enabled"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the baseline configuration applied before file and
// environment overrides.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Timeouts: Timeouts{
			ConnectionSeconds:        60,
			StreamSeconds:            300,
			ToolSeconds:              120,
			WebSearchSeconds:         30,
			HeartbeatIntervalSeconds: 25,
		},
		Checkpoint: CheckpointConfig{
			Path:                 "agentrelay.db",
			GraceWindowMS:        500,
			SweepIntervalSeconds: 300,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from an optional YAML file path and the
// environment, validates it, and returns it. An empty path skips the file
// provider. Load fails (and the caller must not serve traffic) if the
// timeout hierarchy invariant is violated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the whole configuration, collecting every violation so a
// bad deployment surfaces all offending settings at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Checkpoint.GraceWindowMS < 0 {
		errs = append(errs, fmt.Errorf("checkpoint.grace_window_ms must be >= 0, got %d", c.Checkpoint.GraceWindowMS))
	}

	if err := c.Timeouts.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return nil
}

// Validate enforces the timeout hierarchy ordering. Every offending setting
// is reported, not just the first.
func (t Timeouts) Validate() error {
	var errs []error

	for name, v := range map[string]int{
		"timeouts.connection_timeout_seconds": t.ConnectionSeconds,
		"timeouts.stream_timeout_seconds":     t.StreamSeconds,
		"timeouts.tool_timeout_seconds":       t.ToolSeconds,
		"timeouts.web_search_timeout_seconds": t.WebSearchSeconds,
		"timeouts.heartbeat_interval_seconds": t.HeartbeatIntervalSeconds,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", name, v))
		}
	}

	if t.ToolSeconds >= t.StreamSeconds {
		errs = append(errs, fmt.Errorf(
			"timeouts.tool_timeout_seconds (%d) must be strictly less than timeouts.stream_timeout_seconds (%d)",
			t.ToolSeconds, t.StreamSeconds))
	}
	if t.ConnectionSeconds >= t.StreamSeconds {
		errs = append(errs, fmt.Errorf(
			"timeouts.connection_timeout_seconds (%d) must be strictly less than timeouts.stream_timeout_seconds (%d)",
			t.ConnectionSeconds, t.StreamSeconds))
	}
	if t.WebSearchSeconds > t.ToolSeconds {
		errs = append(errs, fmt.Errorf(
			"timeouts.web_search_timeout_seconds (%d) must not exceed timeouts.tool_timeout_seconds (%d)",
			t.WebSearchSeconds, t.ToolSeconds))
	}

	return errors.Join(errs...)
}

// Connection returns the connection scope as a duration.
func (t Timeouts) Connection() time.Duration {
	return time.Duration(t.ConnectionSeconds) * time.Second
}

// Stream returns the stream scope as a duration.
func (t Timeouts) Stream() time.Duration {
	return time.Duration(t.StreamSeconds) * time.Second
}

// Tool returns the tool scope as a duration.
func (t Timeouts) Tool() time.Duration {
	return time.Duration(t.ToolSeconds) * time.Second
}

// WebSearch returns the web-search sub-scope as a duration.
func (t Timeouts) WebSearch() time.Duration {
	return time.Duration(t.WebSearchSeconds) * time.Second
}

// HeartbeatInterval returns the websocket ping cadence as a duration.
func (t Timeouts) HeartbeatInterval() time.Duration {
	return time.Duration(t.HeartbeatIntervalSeconds) * time.Second
}

// GraceWindow returns the checkpoint race grace window as a duration.
func (c CheckpointConfig) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMS) * time.Millisecond
}

// SweepInterval returns the cleanup cadence as a duration.
func (c CheckpointConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
