// Package launcher starts the claude CLI. It resolves shims, spawns the
// program directly, hunts for the real worker when a wrapper comes up
// without pipes, and falls back to a system shell when the program cannot
// be executed directly.
package launcher

import (
	"time"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/process/discovery"
	"github.com/Iron-Ham/claudelink/internal/process/shim"
)

// Launch stages, as recorded on SpawnError and in logs.
const (
	StageDirect    = "direct"
	StageDiscovery = "discovery"
	StageShell     = "shell"
)

// Config holds the launcher's tunables.
type Config struct {
	// DefaultExecutable is started when a LaunchSpec names no executable.
	DefaultExecutable string
	// Shells are tried in order for the shell fallback; only the first two
	// are used. Empty means process.DefaultShells().
	Shells []string

	DiscoveryBudget   time.Duration
	DiscoveryInterval time.Duration
}

// DefaultConfig returns the launcher configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		DefaultExecutable: "claude",
		DiscoveryBudget:   2 * time.Second,
		DiscoveryInterval: 250 * time.Millisecond,
	}
}

// ConfigFrom extracts the launcher settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	exe := cfg.Launcher.Executable
	if exe == "" {
		exe = cfg.Launcher.DefaultName
	}
	return Config{
		DefaultExecutable: exe,
		Shells:            cfg.Launcher.Shells,
		DiscoveryBudget:   cfg.Launcher.DiscoveryBudget(),
		DiscoveryInterval: cfg.Launcher.DiscoveryInterval(),
	}
}

// Launcher implements the spawn strategy. It is safe for concurrent use;
// it keeps no state between Spawn calls.
type Launcher struct {
	starter    process.Starter
	resolver   shim.Resolver
	discoverer discovery.Discoverer
	config     Config
	logger     *logging.Logger
}

// New creates a Launcher from its collaborators. A nil resolver resolves
// nothing and a nil discoverer never finds a worker.
func New(starter process.Starter, resolver shim.Resolver, discoverer discovery.Discoverer, cfg Config, logger *logging.Logger) *Launcher {
	if resolver == nil {
		resolver = shim.Passthrough{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.DefaultExecutable == "" {
		cfg.DefaultExecutable = DefaultConfig().DefaultExecutable
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = DefaultConfig().DiscoveryInterval
	}
	return &Launcher{
		starter:    starter,
		resolver:   resolver,
		discoverer: discoverer,
		config:     cfg,
		logger:     logger.WithComponent("launcher"),
	}
}

// NewFromConfig wires a Launcher over real processes with the platform shim
// resolver and worker discovery.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) (*Launcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	matcher, err := discovery.NewMatcher(cfg.Discovery.Interpreters, cfg.Discovery.ExecutablePatterns)
	if err != nil {
		return nil, err
	}
	starter := process.ExecStarter{}
	return New(
		starter,
		shim.New(cfg.Discovery.Interpreters, logger),
		discovery.New(matcher, starter, logger),
		ConfigFrom(cfg),
		logger,
	), nil
}

// Executable returns the program spec would launch before shim resolution.
func (l *Launcher) Executable(spec process.LaunchSpec) string {
	if spec.Executable != "" {
		return spec.Executable
	}
	return l.config.DefaultExecutable
}

// Resolve returns the shim resolution for spec's executable.
func (l *Launcher) Resolve(spec process.LaunchSpec) shim.Resolution {
	return l.resolver.Resolve(l.Executable(spec))
}

// Spawn starts the process described by spec. The returned child always has
// a pid; pipes are attached for piped launches and absent for visible ones.
//
// The direct launch of the resolved program comes first. A wrapper that
// starts without all pipes is replaced by a discovered worker when one can
// be started with pipes. A program that cannot be executed, or a wrapper
// whose worker never shows up, is retried through the fallback shells.
func (l *Launcher) Spawn(spec process.LaunchSpec) (*process.Child, error) {
	spec = spec.Clone()
	exe := l.Executable(spec)
	logger := l.logger.With("executable", exe)

	res := l.resolver.Resolve(exe)
	if res.Resolved(exe) {
		logger.Debug("shim resolved", "program", res.Program, "leading_args", res.LeadingArgs, "shim", res.Shim)
	}

	env := spec.Environ()
	args := append(append([]string(nil), res.LeadingArgs...), spec.Args...)

	logger.Debug("direct launch", "program", res.Program, "visible", spec.Visible)
	child, directErr := l.starter.Start(process.Command{
		Path:    res.Program,
		Args:    args,
		Env:     env,
		Dir:     spec.WorkingDir,
		Visible: spec.Visible,
	})

	switch {
	case directErr == nil && (spec.Visible || child.HasAllPipes()):
		logger.Info("launched", "stage", StageDirect, "pid", child.PID, "program", child.Program)
		return child, nil

	case directErr == nil:
		logger.Debug("direct launch is missing pipes", "pid", child.PID)
		if worker := l.awaitWorker(child.PID, spec); worker != nil {
			process.Discard(child, logger)
			logger.Info("launched", "stage", StageDiscovery, "pid", worker.PID, "program", worker.Program, "wrapper_pid", child.PID)
			return worker, nil
		}
		logger.Debug("no worker found, discarding wrapper", "pid", child.PID)
		process.Discard(child, logger)

	case process.ShouldFallBack(directErr):
		logger.Debug("direct launch cannot execute program", "error", directErr.Error())

	default:
		logger.Warn("direct launch failed", "error", directErr.Error())
		return nil, errors.NewSpawnError(errors.SpawnLaunchFailed, exe, directErr).WithStage(StageDirect)
	}

	return l.shellFallback(exe, spec, env, directErr, logger)
}

// awaitWorker asks discovery for a spawnable worker under rootPID, polling
// until the discovery budget is spent.
func (l *Launcher) awaitWorker(rootPID int, spec process.LaunchSpec) *process.Child {
	if l.discoverer == nil {
		return nil
	}

	deadline := time.Now().Add(l.config.DiscoveryBudget)
	for attempt := 1; ; attempt++ {
		if worker, ok := l.discoverer.DiscoverSpawnable(rootPID, spec); ok {
			return worker
		}
		if !time.Now().Add(l.config.DiscoveryInterval).Before(deadline) {
			l.logger.Debug("discovery budget spent", "root_pid", rootPID, "attempts", attempt)
			return nil
		}
		time.Sleep(l.config.DiscoveryInterval)
	}
}

// shellFallback runs exe through the primary shell and at most one alternate.
// The line is built from the requested name so the shell applies its own
// lookup rules.
func (l *Launcher) shellFallback(exe string, spec process.LaunchSpec, env []string, directErr error, logger *logging.Logger) (*process.Child, error) {
	shells := l.config.Shells
	if len(shells) == 0 {
		shells = process.DefaultShells()
	}
	if len(shells) > 2 {
		shells = shells[:2]
	}

	var causes []error
	if directErr != nil {
		causes = append(causes, directErr)
	}
	allNotFound := process.IsNotFound(directErr)

	for _, sh := range shells {
		cmd := process.ShellCommand(sh, exe, spec.Args)
		cmd.Env = env
		cmd.Dir = spec.WorkingDir
		cmd.Visible = spec.Visible

		logger.Debug("shell launch", "shell", sh, "args", cmd.Args)
		child, err := l.starter.Start(cmd)
		if err == nil {
			logger.Info("launched", "stage", StageShell, "shell", sh, "pid", child.PID)
			return child, nil
		}
		logger.Debug("shell launch failed", "shell", sh, "error", err.Error())
		causes = append(causes, err)
		allNotFound = allNotFound && process.IsNotFound(err)
	}

	kind := errors.SpawnAllFallbacksExhausted
	if allNotFound {
		kind = errors.SpawnNotFound
	}
	err := errors.NewSpawnError(kind, exe, errors.Join(causes...)).WithStage(StageShell)
	logger.Warn("all launch stages failed", "error", err.Error())
	return nil, err
}
