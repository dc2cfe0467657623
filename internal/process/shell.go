package process

import (
	"path/filepath"
	"runtime"
	"strings"
)

// ShellKind selects the quoting and invocation rules for a fallback shell.
type ShellKind int

const (
	ShellPOSIX ShellKind = iota
	ShellCmd
	ShellPowerShell
)

func (k ShellKind) String() string {
	switch k {
	case ShellCmd:
		return "cmd"
	case ShellPowerShell:
		return "powershell"
	default:
		return "posix"
	}
}

// DefaultShells returns the primary and alternate fallback shells for the
// running platform.
func DefaultShells() []string {
	return defaultShellsFor(runtime.GOOS)
}

func defaultShellsFor(goos string) []string {
	if goos == "windows" {
		return []string{"cmd", "powershell"}
	}
	return []string{"sh", "bash"}
}

// KindOf classifies a shell by its program name.
func KindOf(shell string) ShellKind {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(shell, `\`, "/")))
	base = strings.TrimSuffix(base, ".exe")
	switch base {
	case "cmd":
		return ShellCmd
	case "powershell", "pwsh":
		return ShellPowerShell
	default:
		return ShellPOSIX
	}
}

// ShellCommand builds the Command that runs program with args through shell.
// Env, Dir and Visible are left for the caller.
func ShellCommand(shell, program string, args []string) Command {
	kind := KindOf(shell)
	line := CommandLine(kind, program, args)

	switch kind {
	case ShellCmd:
		// /S makes cmd strip exactly the outer quotes and keep the rest verbatim.
		// /V:OFF keeps !name! literal whatever the registry says.
		argv := []string{"/D", "/V:OFF", "/S", "/C", `"` + line + `"`}
		return Command{
			Path:    shell,
			Args:    argv,
			CmdLine: quoteWindowsArg(shell) + " " + strings.Join(argv, " "),
		}
	case ShellPowerShell:
		return Command{
			Path: shell,
			Args: []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", "& { " + line + " }"},
		}
	default:
		return Command{Path: shell, Args: []string{"-c", line}}
	}
}

// CommandLine joins program and args into one line quoted for kind.
func CommandLine(kind ShellKind, program string, args []string) string {
	parts := make([]string, 0, len(args)+2)
	switch kind {
	case ShellCmd:
		parts = append(parts, quoteWindowsArg(program))
		for _, a := range args {
			parts = append(parts, quoteCmdArg(a))
		}
	case ShellPowerShell:
		parts = append(parts, "&", quotePowerShell(program))
		for _, a := range args {
			parts = append(parts, quotePowerShell(a))
		}
	default:
		parts = append(parts, quotePOSIX(program))
		for _, a := range args {
			parts = append(parts, quotePOSIX(a))
		}
	}
	return strings.Join(parts, " ")
}

func quotePOSIX(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isPOSIXSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isPOSIXSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("_@%+=:,./-", r)
}

// quoteWindowsArg quotes s so CommandLineToArgvW yields it back unchanged.
func quoteWindowsArg(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\n\v\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			// Backslashes already written precede a quote: double them and escape it.
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	b.WriteString(strings.Repeat(`\`, slashes))
	b.WriteByte('"')
	return b.String()
}

// cmdMeta are the characters cmd.exe acts on outside quotes.
const cmdMeta = "&|<>^()!"

// quoteCmdArg quotes s for a cmd.exe line so it reaches the program
// literally.
//
// cmd expands %name% even inside quotes, and an escaped '"' in the argv form
// flips cmd's own quote state. Arguments with '%', or with both '"' and a
// metacharacter, are therefore never put in cmd quotes: the argv form is
// caret-escaped as a whole. Every '%' then reads "^%", so any %...% pair has
// a name ending in '^', which no variable has, and cmd drops the carets.
//
// The program token is not escaped this way; a program path containing '%'
// is expanded by cmd.
func quoteCmdArg(s string) string {
	if strings.Contains(s, "%") || (strings.Contains(s, `"`) && strings.ContainsAny(s, cmdMeta)) {
		return caretEscape(quoteWindowsArg(s))
	}
	if strings.ContainsAny(s, cmdMeta) && !strings.ContainsAny(s, " \t\n\v\"") {
		return `"` + s + `"`
	}
	return quoteWindowsArg(s)
}

func caretEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(cmdMeta+`"%`, r) {
			b.WriteByte('^')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func quotePowerShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
