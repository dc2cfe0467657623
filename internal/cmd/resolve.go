package cmd

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/launcher"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/process/shim"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [executable] [-- args...]",
	Short: "Show how an executable would be launched",
	Long: `Show how claudelink would launch an executable without starting it.

Prints the PATH lookup result, the shim resolution (the real program and any
leading arguments a wrapper script delegates to), and the command lines used
by the shell fallback.

Without an executable, the configured default is resolved.`,
	Args: cobra.ArbitraryArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	var spec process.LaunchSpec
	if len(args) > 0 {
		spec.Executable = args[0]
		spec.Args = args[1:]
	}

	l := launcher.New(process.ExecStarter{}, shim.New(cfg.Discovery.Interpreters, nil), nil, launcher.ConfigFrom(cfg), nil)
	printResolution(cmd.OutOrStdout(), l, spec, cfg.Launcher.Shells)
	return nil
}

// printResolution writes what Spawn would try for spec, stage by stage.
func printResolution(w io.Writer, l *launcher.Launcher, spec process.LaunchSpec, shells []string) {
	exe := l.Executable(spec)
	fmt.Fprintf(w, "executable: %s\n", exe)

	if path, err := exec.LookPath(exe); err != nil {
		fmt.Fprintf(w, "lookup:     not found (%v)\n", err)
	} else {
		fmt.Fprintf(w, "lookup:     %s\n", path)
	}

	res := l.Resolve(spec)
	if res.Resolved(exe) {
		fmt.Fprintf(w, "program:    %s\n", res.Program)
		if len(res.LeadingArgs) > 0 {
			fmt.Fprintf(w, "leading:    %s\n", strings.Join(res.LeadingArgs, " "))
		}
		if res.Shim != "" {
			fmt.Fprintf(w, "shim:       %s\n", res.Shim)
		}
	} else {
		fmt.Fprintf(w, "program:    %s (no shim)\n", res.Program)
	}

	if len(shells) == 0 {
		shells = process.DefaultShells()
	}
	if len(shells) > 2 {
		shells = shells[:2]
	}
	fmt.Fprintln(w, "fallback:")
	for _, sh := range shells {
		c := process.ShellCommand(sh, exe, spec.Args)
		fmt.Fprintf(w, "  %s %s\n", c.Path, strings.Join(c.Args, " "))
	}
}
