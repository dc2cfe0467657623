package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete claudelink configuration
type Config struct {
	Launcher  LauncherConfig  `mapstructure:"launcher" yaml:"launcher"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// LauncherConfig controls how the claude process is started
type LauncherConfig struct {
	// Executable is an explicit path used when a start request names none.
	// Empty means look up DefaultName on PATH.
	Executable string `mapstructure:"executable" yaml:"executable"`
	// DefaultName is the well-known CLI name resolved through the lookup path (default: "claude")
	DefaultName string `mapstructure:"default_name" yaml:"default_name"`
	// DiscoveryBudgetMs bounds how long the launcher polls for a worker process
	// after a spawn without pipes (default: 2000, 0 disables polling)
	DiscoveryBudgetMs int `mapstructure:"discovery_budget_ms" yaml:"discovery_budget_ms"`
	// DiscoveryIntervalMs is the pause between descendant enumerations (default: 250)
	DiscoveryIntervalMs int `mapstructure:"discovery_interval_ms" yaml:"discovery_interval_ms"`
	// Shells is the ordered shell fallback list: a primary and at most one alternate.
	// Empty selects the platform pair (sh, bash) or (cmd, powershell).
	Shells []string `mapstructure:"shells" yaml:"shells"`
	// StopTimeoutMs bounds how long stop waits for the killed child to be reaped (default: 2000)
	StopTimeoutMs int `mapstructure:"stop_timeout_ms" yaml:"stop_timeout_ms"`
}

// DiscoveryConfig controls how worker candidates are picked from command lines
type DiscoveryConfig struct {
	// Interpreters are program names whose command lines are re-spawnable
	// candidates (default: node, bun, deno)
	Interpreters []string `mapstructure:"interpreters" yaml:"interpreters"`
	// ExecutablePatterns are glob patterns matched against command-line tokens,
	// case-insensitively (default: "*.exe")
	ExecutablePatterns []string `mapstructure:"executable_patterns" yaml:"executable_patterns"`
}

// OutputConfig controls the per-session plain-text output log
type OutputConfig struct {
	// SessionLog enables the [OUT]/[ERR] session log (default: true)
	SessionLog bool `mapstructure:"session_log" yaml:"session_log"`
	// LogDir overrides where session logs go. Empty means the launch working
	// directory, or the system temp dir when none was given.
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled turns on the JSON debug log (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum log level: debug, info, warn, error (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where debug.log is written. Empty means {ConfigDir}/logs.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the size at which debug.log rotates (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Launcher: LauncherConfig{
			Executable:          "",
			DefaultName:         "claude",
			DiscoveryBudgetMs:   2000,
			DiscoveryIntervalMs: 250,
			Shells:              []string{},
			StopTimeoutMs:       2000,
		},
		Discovery: DiscoveryConfig{
			Interpreters:       []string{"node", "bun", "deno"},
			ExecutablePatterns: []string{"*.exe"},
		},
		Output: OutputConfig{
			SessionLog: true,
			LogDir:     "",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// DiscoveryBudget returns the worker polling budget as a time.Duration
func (c *LauncherConfig) DiscoveryBudget() time.Duration {
	return time.Duration(c.DiscoveryBudgetMs) * time.Millisecond
}

// DiscoveryInterval returns the pause between enumerations as a time.Duration
func (c *LauncherConfig) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalMs) * time.Millisecond
}

// StopTimeout returns the reap timeout used by stop as a time.Duration
func (c *LauncherConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// ResolveDir returns the debug log directory, expanding ~.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return expandHome(c.Dir)
}

// ResolveLogDir returns the directory a session log is written to for a
// launch in workingDir.
func (c *OutputConfig) ResolveLogDir(workingDir string) string {
	switch {
	case c.LogDir != "":
		return expandHome(c.LogDir)
	case workingDir != "":
		return workingDir
	default:
		return os.TempDir()
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Launcher defaults
	viper.SetDefault("launcher.executable", defaults.Launcher.Executable)
	viper.SetDefault("launcher.default_name", defaults.Launcher.DefaultName)
	viper.SetDefault("launcher.discovery_budget_ms", defaults.Launcher.DiscoveryBudgetMs)
	viper.SetDefault("launcher.discovery_interval_ms", defaults.Launcher.DiscoveryIntervalMs)
	viper.SetDefault("launcher.shells", defaults.Launcher.Shells)
	viper.SetDefault("launcher.stop_timeout_ms", defaults.Launcher.StopTimeoutMs)

	// Discovery defaults
	viper.SetDefault("discovery.interpreters", defaults.Discovery.Interpreters)
	viper.SetDefault("discovery.executable_patterns", defaults.Discovery.ExecutablePatterns)

	// Output defaults
	viper.SetDefault("output.session_log", defaults.Output.SessionLog)
	viper.SetDefault("output.log_dir", defaults.Output.LogDir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claudelink")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claudelink"
	}
	return filepath.Join(home, ".config", "claudelink")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
