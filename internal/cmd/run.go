package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/event"
	"github.com/Iron-Ham/claudelink/internal/supervisor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- claude-args...]",
	Short: "Start claude and relay terminal input to it",
	Long: `Start claude under supervision and relay each line typed here to its stdin.
Captured stdout and stderr are printed as they arrive.

Lines starting with ':' are commands instead of input:
  :start [args...]  start again (after :stop), optionally with new arguments
  :stop             kill the running process
  :status           report whether claude is running
  :info             show pid, session and run ids, log path
  :output           print everything captured since the last :clear
  :clear            empty the captured output
  :quit             stop claude and exit

Examples:
  claudelink run -- --model opus
  claudelink run --exe ~/.local/bin/claude --cwd ~/src/project
  claudelink run --env ANTHROPIC_LOG=debug -- --verbose
  claudelink run --trace`,
	RunE: runRun,
}

var (
	runExecutable string
	runWorkDir    string
	runVisible    bool
	runEnv        []string
	runSessionID  string
	runTrace      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runExecutable, "exe", "", "Executable to launch (default: launcher.executable or claude on PATH)")
	runCmd.Flags().StringVar(&runWorkDir, "cwd", "", "Working directory for claude")
	runCmd.Flags().BoolVar(&runVisible, "visible", false, "Launch detached with its own console; input cannot be relayed")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "Session ID to register (default: generated)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print every supervisor event as it is published")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	env, err := parseEnvFlags(runEnv)
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Close() }()

	bus := event.NewBus(logger)
	sup, err := newSupervisor(cfg, logger, supervisor.WithBus(bus))
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()

	out := cmd.OutOrStdout()
	r := newRenderer(out, isTerminal(out), terminalWidth(out))
	h := newHost(sup, r, supervisor.StartRequest{
		Args:       args,
		Env:        env,
		WorkingDir: runWorkDir,
		Executable: runExecutable,
		Visible:    runVisible,
		SessionID:  runSessionID,
	})
	h.trace = runTrace
	h.watch(bus)
	defer h.unwatch(bus)

	if !h.start(nil) {
		return fmt.Errorf("claude did not start")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return h.loop(ctx, cmd.InOrStdin())
}

// parseEnvFlags turns KEY=VALUE flags into an override map.
func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env value %q: expected KEY=VALUE", pair)
		}
		env[k] = v
	}
	return env, nil
}

// host relays terminal lines to one supervised session.
type host struct {
	sup *supervisor.Supervisor
	api *supervisor.API
	r   *renderer
	req supervisor.StartRequest

	// trace prints every published event type.
	trace bool
	subs  []string
}

func newHost(sup *supervisor.Supervisor, r *renderer, req supervisor.StartRequest) *host {
	return &host{
		sup: sup,
		api: supervisor.NewAPI(sup),
		r:   r,
		req: req,
	}
}

// watch renders output lines and process exits as they are published.
func (h *host) watch(bus *event.Bus) {
	h.subs = append(h.subs, bus.Subscribe(event.TypeOutputLine, func(e event.Event) {
		if ev, ok := e.(event.OutputLineEvent); ok {
			h.r.line(ev.Line)
		}
	}))
	h.subs = append(h.subs, bus.Subscribe(event.TypeProcessExited, func(e event.Event) {
		ev, ok := e.(event.ProcessExitedEvent)
		if !ok {
			return
		}
		if ev.Status == "" {
			h.r.notice("process %d exited", ev.PID)
		} else {
			h.r.notice("process %d exited: %s", ev.PID, ev.Status)
		}
	}))
	if h.trace {
		h.subs = append(h.subs, bus.SubscribeAll(func(e event.Event) {
			if e.EventType() != event.TypeOutputLine {
				h.r.notice("event %s", e.EventType())
			}
		}))
	}
}

// unwatch drops every subscription made by watch, so nothing renders after
// the host is done.
func (h *host) unwatch(bus *event.Bus) {
	for _, id := range h.subs {
		bus.Unsubscribe(id)
	}
	h.subs = nil
}

// report renders a failed operation. State violations such as stopping an
// idle session are notices; warnings and errors get their own marks.
func (h *host) report(err error) {
	switch {
	case errors.IsStateViolation(err):
		h.r.notice("%s", err.Error())
	case errors.GetSeverity(err) <= errors.SeverityWarning:
		h.r.warning(err.Error())
	default:
		h.r.failure(err.Error())
	}
}

// start launches the session; args, when non-nil, replace the request's
// arguments. It reports whether the session is running.
func (h *host) start(args []string) bool {
	if args != nil {
		h.req.Args = args
	}
	msg, err := h.api.Start(h.req)
	if err != nil {
		h.report(err)
		if errors.IsRetryable(err) {
			h.r.notice("the failure may be transient; :start to try again")
		}
		return false
	}
	h.r.notice("%s", msg)
	if h.sup.Info().Visible {
		h.r.notice("launched visible; input is not relayed")
	}
	return true
}

// loop reads lines from in until EOF, :quit or ctx is done.
func (h *host) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			if h.handle(line) {
				return nil
			}
		}
	}
}

// handle acts on one input line and reports whether the host should exit.
func (h *host) handle(line string) bool {
	if !strings.HasPrefix(line, ":") {
		if err := h.api.SendInput(line); err != nil {
			h.report(err)
		}
		return false
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "start":
		var args []string
		if len(fields) > 1 {
			args = fields[1:]
		}
		h.start(args)
	case "stop":
		msg, err := h.api.Stop()
		if err != nil {
			h.report(err)
		} else {
			h.r.notice("%s", msg)
		}
	case "status":
		if h.api.Status() {
			h.r.notice("running")
		} else {
			h.r.notice("not running")
		}
	case "info":
		h.r.info(h.sup.Info())
	case "output":
		snap := h.api.GetOutput()
		h.r.snapshot(snap.Stdout, snap.Stderr)
	case "clear":
		h.api.ClearOutput()
		h.r.notice("output cleared")
	case "quit", "exit", "q":
		return true
	default:
		h.r.failure(fmt.Sprintf("unknown command :%s", fields[0]))
	}
	return false
}
