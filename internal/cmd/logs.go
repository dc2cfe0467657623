package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/output"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [session-log]",
	Short: "View session output logs or the debug log",
	Long: `View the [OUT]/[ERR] session logs written while claude runs, or the
JSON debug log with --debug.

By default, shows the most recent session log in the session log directory
(output.log_dir, or the current directory).

Examples:
  # Show the last 50 lines of the most recent session
  claudelink logs

  # Follow the most recent session as claude writes to it
  claudelink logs -f

  # List every session log
  claudelink logs --list

  # Debug log entries at warn and above for one session
  claudelink logs --debug --level warn --session 6f1c...

  # Debug log lines mentioning discovery
  claudelink logs --debug --grep discovery`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsDir       string
	logsTail      int
	logsFollow    bool
	logsList      bool
	logsDebug     bool
	logsLevel     string
	logsSessionID string
	logsComponent string
	logsSince     string
	logsGrep      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Session log directory (default: output.log_dir or the current directory)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().BoolVar(&logsList, "list", false, "List session logs, newest first")
	logsCmd.Flags().BoolVar(&logsDebug, "debug", false, "Show the JSON debug log instead of session output")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Debug log: minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Debug log: only this session ID")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Debug log: only this component (launcher, supervisor, ...)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Debug log: entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Debug log: message substring to match")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	if logsDebug {
		since, err := parseSince(logsSince)
		if err != nil {
			return err
		}
		filter := logging.Filter{
			MinLevel:  logsLevel,
			SessionID: logsSessionID,
			Component: logsComponent,
			Contains:  logsGrep,
		}
		return showDebugLog(out, cfg.Logging.ResolveDir(), filter, since, logsTail, isTerminal(out))
	}

	dir := logsDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cfg.Output.ResolveLogDir(cwd)
	}

	if logsList {
		return listSessionLogs(out, dir)
	}

	path, err := pickSessionLog(dir, args)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintf(out, "No session logs found in %s\n", dir)
		return nil
	}

	styled := isTerminal(out)
	if err := showSessionLog(out, path, logsTail, styled); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n", path)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return output.Follow(ctx, path, false, func(line string) {
		fmt.Fprintln(out, styleSessionLine(line, styled))
	})
}

func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration format: %w", err)
	}
	return time.Now().Add(-d), nil
}

// pickSessionLog returns the log named in args, or the newest one in dir.
// An empty path means there are none.
func pickSessionLog(dir string, args []string) (string, error) {
	if len(args) > 0 {
		path := args[0]
		if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("session log not found: %w", err)
		}
		return path, nil
	}

	logs, err := output.ListSessionLogs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list session logs in %s", dir)
	}
	if len(logs) == 0 {
		return "", nil
	}
	return logs[0], nil
}

func listSessionLogs(w io.Writer, dir string) error {
	logs, err := output.ListSessionLogs(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to list session logs in %s", dir)
	}
	if len(logs) == 0 {
		fmt.Fprintf(w, "No session logs found in %s\n", dir)
		return nil
	}
	for _, path := range logs {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintln(w, path)
			continue
		}
		fmt.Fprintf(w, "%s  %8d  %s\n", info.ModTime().Format("2006-01-02 15:04:05"), info.Size(), filepath.Base(path))
	}
	return nil
}

// showSessionLog prints the last tail lines of path (all when tail is 0).
func showSessionLog(w io.Writer, path string, tail int, styled bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open session log")
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	// Increase buffer size for long output lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading session log: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		fmt.Fprintln(w, styleSessionLine(line, styled))
	}
	return nil
}

var errLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

func styleSessionLine(line string, styled bool) string {
	if styled && strings.HasPrefix(line, output.Stderr.Tag()) {
		return errLineStyle.Render(line)
	}
	return line
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

// showDebugLog prints the filtered tail of {dir}/debug.log.
func showDebugLog(w io.Writer, dir string, filter logging.Filter, since time.Time, tail int, styled bool) error {
	entries, err := logging.ReadDebugLog(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(w, "No debug log found in %s\n", dir)
			return nil
		}
		return err
	}

	entries = filter.Apply(entries)
	if !since.IsZero() {
		kept := entries[:0]
		for _, e := range entries {
			if !e.Time.Before(since) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
		return nil
	}
	for _, e := range entries {
		line := e.Format()
		if style, ok := levelStyles[logging.ParseLevel(e.Level)]; ok && styled {
			line = style.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
