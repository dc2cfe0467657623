package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify claudelink configuration",
	Long: `View or modify claudelink configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  claudelink config set launcher.executable /opt/claude/bin/claude
  claudelink config set launcher.discovery_budget_ms 5000
  claudelink config set output.session_log false

Valid keys:
  launcher.executable            - Program started when no executable is given
  launcher.default_name          - CLI name looked up on PATH (default: claude)
  launcher.discovery_budget_ms   - How long to poll for a worker process
  launcher.discovery_interval_ms - Pause between worker polls
  launcher.stop_timeout_ms       - How long stop waits for the process to exit
  output.session_log             - Write [OUT]/[ERR] session logs (true/false)
  output.log_dir                 - Session log directory (default: working dir)
  logging.enabled                - Write the JSON debug log (true/false)
  logging.level                  - debug, info, warn or error
  logging.dir                    - Debug log directory
  logging.max_size_mb            - Debug log rotation size
  logging.max_backups            - Rotated debug logs kept
  logging.compress               - Gzip rotated debug logs (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/claudelink/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps every key accepted by config set to its value type.
var settableKeys = map[string]string{
	"launcher.executable":            "string",
	"launcher.default_name":          "string",
	"launcher.discovery_budget_ms":   "int",
	"launcher.discovery_interval_ms": "int",
	"launcher.stop_timeout_ms":       "int",
	"output.session_log":             "bool",
	"output.log_dir":                 "string",
	"logging.enabled":                "bool",
	"logging.level":                  "string",
	"logging.dir":                    "string",
	"logging.max_size_mb":            "int",
	"logging.max_backups":            "int",
	"logging.compress":               "bool",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "Configuration is invalid, showing defaults:\n%v\n\n", err)
		cfg = config.Default()
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseConfigValue converts value to the type registered for key.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'claudelink config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typed)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# claudelink configuration

launcher:
  # Program started when a start request names none. Empty looks up
  # default_name on PATH.
  executable: ""
  default_name: claude
  # After a launch that comes up without pipes, how long to look for the
  # real worker process and how often.
  discovery_budget_ms: 2000
  discovery_interval_ms: 250
  # Shell fallback: a primary and at most one alternate.
  # Empty uses sh, bash (or cmd, powershell on Windows).
  shells: []
  # How long stop waits for the killed process to exit.
  stop_timeout_ms: 2000

discovery:
  # Interpreters whose command lines can be re-spawned with pipes.
  interpreters: [node, bun, deno]
  # Glob patterns for executable tokens in a worker's command line.
  executable_patterns: ["*.exe"]

output:
  # Mirror captured lines to claudelink-session-*.log.
  session_log: true
  # Empty writes next to the launch working directory.
  log_dir: ""

logging:
  enabled: true
  # debug, info, warn, error
  level: info
  # Empty is ~/.config/claudelink/logs
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'claudelink config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize claudelink's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/claudelink/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: CLAUDELINK_* (e.g., CLAUDELINK_LAUNCHER_STOP_TIMEOUT_MS)")
	return nil
}
