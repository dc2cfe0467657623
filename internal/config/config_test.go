package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Launcher.DefaultName != "claude" {
		t.Errorf("Launcher.DefaultName = %q, want %q", cfg.Launcher.DefaultName, "claude")
	}
	if cfg.Launcher.DiscoveryBudgetMs != 2000 {
		t.Errorf("Launcher.DiscoveryBudgetMs = %d, want 2000", cfg.Launcher.DiscoveryBudgetMs)
	}
	if cfg.Launcher.DiscoveryIntervalMs != 250 {
		t.Errorf("Launcher.DiscoveryIntervalMs = %d, want 250", cfg.Launcher.DiscoveryIntervalMs)
	}
	if len(cfg.Launcher.Shells) != 0 {
		t.Errorf("Launcher.Shells should default to platform shells, got %v", cfg.Launcher.Shells)
	}
	if len(cfg.Discovery.Interpreters) != 3 {
		t.Errorf("Discovery.Interpreters = %v", cfg.Discovery.Interpreters)
	}
	if !cfg.Output.SessionLog {
		t.Error("Output.SessionLog should be true by default")
	}
	if !cfg.Logging.Enabled || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() should validate, got %v", ValidationErrors(errs))
	}
}

func TestLauncherDurations(t *testing.T) {
	l := LauncherConfig{DiscoveryBudgetMs: 2000, DiscoveryIntervalMs: 250, StopTimeoutMs: 1500}

	if l.DiscoveryBudget() != 2*time.Second {
		t.Errorf("DiscoveryBudget() = %v", l.DiscoveryBudget())
	}
	if l.DiscoveryInterval() != 250*time.Millisecond {
		t.Errorf("DiscoveryInterval() = %v", l.DiscoveryInterval())
	}
	if l.StopTimeout() != 1500*time.Millisecond {
		t.Errorf("StopTimeout() = %v", l.StopTimeout())
	}
}

func TestOutputConfig_ResolveLogDir(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name       string
		logDir     string
		workingDir string
		want       string
	}{
		{"explicit dir wins", "/var/log/claudelink", "/work", "/var/log/claudelink"},
		{"home expansion", "~/logs", "/work", filepath.Join(home, "logs")},
		{"working dir", "", "/work", "/work"},
		{"temp fallback", "", "", os.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := OutputConfig{LogDir: tt.logDir}
			if got := c.ResolveLogDir(tt.workingDir); got != tt.want {
				t.Errorf("ResolveLogDir(%q) = %q, want %q", tt.workingDir, got, tt.want)
			}
		})
	}
}

func TestLoggingConfig_ResolveDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	c := LoggingConfig{}
	if got, want := c.ResolveDir(), filepath.Join("/custom/config", "claudelink", "logs"); got != want {
		t.Errorf("ResolveDir() = %q, want %q", got, want)
	}

	c.Dir = "/tmp/debug"
	if got := c.ResolveDir(); got != "/tmp/debug" {
		t.Errorf("ResolveDir() = %q, want /tmp/debug", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), filepath.Join("/custom/config", "claudelink"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := ConfigDir(), filepath.Join(home, ".config", "claudelink"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), filepath.Join("/custom/config", "claudelink", "config.yaml"); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults load cleanly", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Launcher.StopTimeoutMs != 2000 {
			t.Errorf("StopTimeoutMs = %d, want 2000", cfg.Launcher.StopTimeoutMs)
		}
	})

	t.Run("reads a yaml config file", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "launcher:\n  default_name: claude-beta\n  shells: [bash]\ndiscovery:\n  interpreters: [node]\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig() error = %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Launcher.DefaultName != "claude-beta" {
			t.Errorf("DefaultName = %q", cfg.Launcher.DefaultName)
		}
		if len(cfg.Launcher.Shells) != 1 || cfg.Launcher.Shells[0] != "bash" {
			t.Errorf("Shells = %v", cfg.Launcher.Shells)
		}
		if cfg.Launcher.DiscoveryBudgetMs != 2000 {
			t.Errorf("unset keys should keep defaults, got budget %d", cfg.Launcher.DiscoveryBudgetMs)
		}
	})

	t.Run("invalid values fail validation and Get falls back", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("launcher.discovery_interval_ms", 0)

		_, err := Load()
		var verrs ValidationErrors
		if err == nil {
			t.Fatal("Load() should fail")
		}
		if v, ok := err.(ValidationErrors); ok {
			verrs = v
		}
		if len(verrs) != 1 || verrs[0].Field != "launcher.discovery_interval_ms" {
			t.Errorf("Load() error = %v", err)
		}

		if got := Get(); got.Launcher.DiscoveryIntervalMs != 250 {
			t.Errorf("Get() should fall back to defaults, got %d", got.Launcher.DiscoveryIntervalMs)
		}
	})
}
