package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted when no config path is given.
const EnvPath = "TRACECANON_CONFIG"

// ErrNoConfig is returned by Resolve when neither a path nor EnvPath is set.
var ErrNoConfig = errors.New("no config file given")

var consoleLevels = []string{"log", "info", "warn", "error", "debug", "assert"}

// Config represents the main configuration structure
type Config struct {
	Listen  string        `json:"listen" toml:"listen" yaml:"listen"`
	Log     LogConfig     `json:"log" toml:"log" yaml:"log"`
	Sandbox SandboxConfig `json:"sandbox" toml:"sandbox" yaml:"sandbox"`
	Console ConsoleConfig `json:"console" toml:"console" yaml:"console"`
	Output  OutputConfig  `json:"output" toml:"output" yaml:"output"`
}

type LogConfig struct {
	Level     string `json:"level" toml:"level" yaml:"level"`
	File      string `json:"file,omitempty" toml:"file" yaml:"file,omitempty"`
	MaxSizeMB int    `json:"maxSizeMB,omitempty" toml:"maxSizeMB" yaml:"maxSizeMB,omitempty"`
}

// SandboxConfig points at the JS runtime plugin used by run_script.
type SandboxConfig struct {
	PluginPath string `json:"pluginPath,omitempty" toml:"pluginPath" yaml:"pluginPath,omitempty"`
	// URL the plugin is reported under in wasm frames. Defaults to a file URL of PluginPath.
	PluginURL  string `json:"pluginURL,omitempty" toml:"pluginURL" yaml:"pluginURL,omitempty"`
	Entrypoint string `json:"entrypoint" toml:"entrypoint" yaml:"entrypoint"`
	Timeout    string `json:"timeout" toml:"timeout" yaml:"timeout"`
}

type ConsoleConfig struct {
	Levels []string `json:"levels" toml:"levels" yaml:"levels"`
}

type OutputConfig struct {
	Format string `json:"format" toml:"format" yaml:"format"`
}

// Default returns a config usable without any file.
func Default() *Config {
	return &Config{
		Listen:  ":3000",
		Log:     LogConfig{Level: "info"},
		Sandbox: SandboxConfig{Entrypoint: "run", Timeout: "30s"},
		Console: ConsoleConfig{Levels: slices.Clone(consoleLevels)},
		Output:  OutputConfig{Format: "json"},
	}
}

// Resolve returns flagPath, or the EnvPath variable when flagPath is empty.
func Resolve(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	return "", ErrNoConfig
}

// LoadOrDefault loads the resolved config file, or returns Default when none is configured.
func LoadOrDefault(flagPath string) (*Config, error) {
	path, err := Resolve(flagPath)
	if errors.Is(err, ErrNoConfig) {
		return Default(), nil
	}
	return Load(path)
}

// Load reads and parses the configuration file. The format follows the
// extension: .json, .toml, .yaml or .yml. Missing fields keep their defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".json":
		err = json.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// TimeoutDuration returns the parsed sandbox timeout.
func (s SandboxConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// validate checks if the configuration is valid
func validate(config *Config) error {
	if config.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch config.Output.Format {
	case "json", "msgpack":
	default:
		return fmt.Errorf("output: invalid format %q (must be json or msgpack)", config.Output.Format)
	}

	for _, level := range config.Console.Levels {
		if !slices.Contains(consoleLevels, level) {
			return fmt.Errorf("console: unknown level %q", level)
		}
	}

	d, err := time.ParseDuration(config.Sandbox.Timeout)
	if err != nil {
		return fmt.Errorf("sandbox: invalid timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("sandbox: timeout must be positive, got %s", d)
	}
	if config.Sandbox.Entrypoint == "" {
		return fmt.Errorf("sandbox: entrypoint is required")
	}

	return nil
}
