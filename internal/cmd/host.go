package cmd

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/launcher"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/process/discovery"
	"github.com/Iron-Ham/claudelink/internal/supervisor"
)

// createLogger creates the debug logger if logging is enabled in config.
// Returns a NopLogger if logging is disabled or if creation fails.
func createLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}
	logger, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level, rotation)
	if err != nil {
		// A broken log directory must not keep claude from starting
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// newSupervisor wires the launcher, worker discovery and supervisor for real
// processes.
func newSupervisor(cfg *config.Config, logger *logging.Logger, opts ...supervisor.Option) (*supervisor.Supervisor, error) {
	l, err := launcher.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create launcher")
	}

	matcher, err := discovery.NewMatcher(cfg.Discovery.Interpreters, cfg.Discovery.ExecutablePatterns)
	if err != nil {
		return nil, errors.Wrap(err, "invalid discovery configuration")
	}
	finder := discovery.New(matcher, process.ExecStarter{}, logger)

	opts = append([]supervisor.Option{supervisor.WithWorkerFinder(finder)}, opts...)
	return supervisor.New(l, supervisor.ConfigFrom(cfg), logger, opts...), nil
}
