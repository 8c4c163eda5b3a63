package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lightfastai/buildhooks/internal/env"
	"github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/execext"
	"github.com/lightfastai/buildhooks/internal/hooks"
)

const (
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "buildhooks.yml"
	// SupportedVersion is the currently supported config schema version
	SupportedVersion = 1
)

// Config represents the buildhooks.yml structure
type Config struct {
	Version int `yaml:"version"`

	// Build is the command the CLI runs as the build step of a cycle.
	Build string `yaml:"build,omitempty"`

	// Watch lists the paths, relative to the project root, that trigger a
	// new cycle in a watch session.
	Watch []string `yaml:"watch,omitempty"`

	// Ignore lists directory names a watch session never descends into,
	// such as the build output directory.
	Ignore []string `yaml:"ignore,omitempty"`

	// Env is laid over the process environment of every hook command.
	Env map[string]string `yaml:"env,omitempty"`

	// EnvFile is a dotenv file applied under Env.
	EnvFile string `yaml:"envFile,omitempty"`

	Logging      *bool `yaml:"logging,omitempty"`
	Safe         bool  `yaml:"safe,omitempty"`
	Shell        bool  `yaml:"shell,omitempty"`
	SwallowError bool  `yaml:"swallowError,omitempty"`
	Dev          bool  `yaml:"dev,omitempty"`

	Hooks map[string]Hook `yaml:"hooks,omitempty"`
}

// LoggingEnabled reports the logging option, which defaults to true
func (c *Config) LoggingEnabled() bool {
	return c.Logging == nil || *c.Logging
}

// LoadConfig searches for buildhooks.yml starting from the current directory
// and walking up the directory tree until it finds the file or reaches the root.
// It returns the parsed config and the absolute path of the project root (where the config was found).
func LoadConfig() (*Config, string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadConfigFromDir(currentDir)
}

// LoadConfigFromDir is LoadConfig with an explicit starting directory
func LoadConfigFromDir(dir string) (*Config, string, error) {
	searchDir := dir
	for {
		configPath := filepath.Join(searchDir, ConfigFileName)

		if _, err := os.Stat(configPath); err == nil {
			config, err := LoadConfigFrom(configPath)
			if err != nil {
				return nil, "", err
			}
			return config, searchDir, nil
		}

		parentDir := filepath.Dir(searchDir)
		if parentDir == searchDir {
			return nil, "", errors.ConfigNotFound(ConfigFileName)
		}
		searchDir = parentDir
	}
}

// LoadConfigFrom loads a config from a specific path
func LoadConfigFrom(path string) (*Config, error) {
	config, err := parseConfig(path)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// parseConfig reads and parses a YAML config file
func parseConfig(path string) (*Config, error) {
	// #nosec G304 - path is the discovered or user-supplied config file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.ConfigInvalid("failed to parse YAML", err).WithContext("File", path)
	}

	return &config, nil
}

// validateConfig checks that the config has valid structure and values
func validateConfig(config *Config) error {
	if config.Version == 0 {
		return errors.ConfigInvalid("version field is required", nil)
	}
	if config.Version != SupportedVersion {
		return errors.ConfigInvalid(
			fmt.Sprintf("unsupported config version %d (expected %d)", config.Version, SupportedVersion), nil)
	}

	for _, name := range config.hookNames() {
		if err := validateHook(name, config.Hooks[name]); err != nil {
			return err
		}
	}

	for _, p := range config.Watch {
		if p == "" {
			return errors.ConfigInvalid("watch paths cannot be empty", nil)
		}
	}

	return nil
}

func validateHook(name string, hook Hook) error {
	if !hooks.Phase(name).IsValid() {
		return errors.ConfigInvalid(fmt.Sprintf("unknown hook phase %q", name), nil).
			WithFix(fmt.Sprintf("Valid phases: %v", hooks.Phases()))
	}
	if hook.Parallel && hook.Blocking {
		return errors.InvalidTaskSet(name)
	}
	for i, s := range hook.Scripts {
		if s.structured && s.Command == "" {
			return errors.ConfigInvalid(fmt.Sprintf("hook %s: script %d has an empty command", name, i+1), nil)
		}
	}
	return nil
}

func (c *Config) hookNames() []string {
	names := make([]string, 0, len(c.Hooks))
	for name := range c.Hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors converts the hooks section into the engine's configuration
func (c *Config) Descriptors() hooks.Config {
	out := hooks.Config{
		Hooks: make(map[hooks.Phase]hooks.Descriptor, len(c.Hooks)),
		Dev:   c.Dev,
	}
	for name, hook := range c.Hooks {
		out.Hooks[hooks.Phase(name)] = hook.Descriptor()
	}
	return out
}

// ExecOptions builds the process options for hook commands. Relative paths
// are resolved against root. Variables from EnvFile are applied first so Env
// can override them.
func (c *Config) ExecOptions(root string) (execext.Options, error) {
	layers := env.Layers{}

	if c.EnvFile != "" {
		path := c.EnvFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		fromFile, err := env.LoadEnvFile(path)
		if err != nil {
			return execext.Options{}, errors.EnvParseFailed(path, err)
		}
		layers = append(layers, fromFile)
	}
	layers = append(layers, c.Env)

	return execext.Options{
		Env:          layers.Merge(),
		Logging:      c.LoggingEnabled(),
		Safe:         c.Safe,
		Shell:        c.Shell,
		SwallowError: c.SwallowError,
		Dir:          root,
	}, nil
}

// WatchPaths returns the watch paths resolved against root. An empty list
// watches root itself.
func (c *Config) WatchPaths(root string) []string {
	if len(c.Watch) == 0 {
		return []string{root}
	}
	paths := make([]string, 0, len(c.Watch))
	for _, p := range c.Watch {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		paths = append(paths, p)
	}
	return paths
}

// SaveConfig writes a config to the specified path atomically
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary config: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Template returns the configuration written by `buildhooks init`
func Template() *Config {
	return &Config{
		Version: SupportedVersion,
		Build:   "go build ./...",
		Hooks: map[string]Hook{
			string(hooks.BeforeBuild): {Shorthand: "echo starting build"},
			string(hooks.BuildEnd):    {Scripts: []Script{{Line: "echo build finished"}}},
			string(hooks.BuildError):  {Scripts: []Script{{Line: "echo build failed"}}, Blocking: true},
		},
	}
}
