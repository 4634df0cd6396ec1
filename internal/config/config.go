// Package config provides configuration management for the debug engine
// and its MCP tool surface.
//
// Configuration controls:
//   - Capability mode (readonly vs full): which tools the MCP layer exposes
//   - The runtime helper library search path overrides (spec §4.1)
//   - dotnet build flags used by debug_launch / debug_launch_test
//   - Safety limits: the default wait-for-event timeout on blocking tools
//
// Configuration can be loaded from a JSON file or use sensible defaults.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// CapabilityMode controls which tools the MCP layer registers.
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // inspection tools only
	ModeFull     CapabilityMode = "full"     // all tools, including control
)

// Config holds the server configuration.
type Config struct {
	Mode CapabilityMode `json:"mode"`

	// HelperPath, if set, is tried before any environment-variable or
	// well-known-location search (spec §4.1 step 1).
	HelperPath string `json:"helperPath"`

	// BuildConfiguration is passed to `dotnet build -c <value>`.
	BuildConfiguration string `json:"buildConfiguration"`

	// FirstChanceExceptions, if true, is the default for sessions that
	// don't specify it explicitly on debug_launch/debug_launch_test.
	FirstChanceExceptions bool `json:"firstChanceExceptions"`

	// EventWaitTimeout bounds how long an agent-facing wrapper will wait
	// for the next event before giving up; the engine itself imposes no
	// such timeout (spec §5).
	EventWaitTimeout time.Duration `json:"eventWaitTimeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:                  ModeFull,
		BuildConfiguration:    "Debug",
		FirstChanceExceptions: false,
		EventWaitTimeout:      30 * time.Second,
	}
}

// LoadConfig loads configuration from a JSON file, falling back to
// defaults for an empty path.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CanUseControlTools reports whether execution-control tools (continue,
// step, pause, set breakpoint, ...) should be registered.
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}
