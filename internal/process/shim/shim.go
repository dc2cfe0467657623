// Package shim resolves launcher wrappers (.cmd and .bat scripts installed
// by package managers) to the program they ultimately run. Scripts are read,
// never executed.
package shim

import (
	"os"
	"slices"
	"strings"

	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/process"
)

// Resolution is the outcome of resolving an executable name.
type Resolution struct {
	// Program is what to start. It is the requested name when nothing resolved.
	Program string
	// LeadingArgs go before the caller's arguments, e.g. the script an
	// interpreter shim hands to node.
	LeadingArgs []string
	// Shim is the script the resolution came from, if any.
	Shim string
}

// Resolved reports whether the resolution differs from the plain name.
func (r Resolution) Resolved(name string) bool {
	return r.Program != name || len(r.LeadingArgs) > 0
}

// Resolver turns an executable name into the best concrete program.
type Resolver interface {
	Resolve(name string) Resolution
}

// Passthrough returns every name unchanged.
type Passthrough struct{}

// Resolve implements Resolver.
func (Passthrough) Resolve(name string) Resolution {
	return Resolution{Program: name}
}

// DefaultInterpreters are the runtimes a shim may delegate to.
var DefaultInterpreters = []string{"node", "bun", "deno"}

var variantExts = []string{".cmd", ".bat", ".exe"}

// ScriptResolver resolves names through a lookup function and inspects
// batch scripts found on the way.
type ScriptResolver struct {
	// Lookup returns the path the system would execute for name.
	Lookup func(name string) (string, error)
	// ReadFile and Exists default to the os package.
	ReadFile     func(path string) ([]byte, error)
	Exists       func(path string) bool
	Interpreters []string
	Logger       *logging.Logger
}

// Resolve implements Resolver. Every failure degrades to the unchanged name.
func (r *ScriptResolver) Resolve(name string) Resolution {
	path := r.lookup(name)
	if ext(path) == "" {
		for _, e := range variantExts {
			if r.exists(path + e) {
				path += e
				break
			}
		}
	}

	switch ext(path) {
	case ".cmd", ".bat":
	default:
		if path != name {
			r.logger().Debug("resolved executable", "name", name, "path", path)
		}
		return Resolution{Program: path}
	}

	data, err := r.readFile(path)
	if err != nil {
		r.logger().Debug("shim unreadable", "path", path, "error", err.Error())
		return Resolution{Program: path}
	}

	target, ok := ParseScript(string(data), dir(path), r.interpreters())
	if !ok {
		return Resolution{Program: path, Shim: path}
	}

	res := Resolution{Shim: path}
	switch {
	case target.Executable != "":
		res.Program = target.Executable
	case target.InterpreterPath != "" && r.exists(target.InterpreterPath):
		res.Program = target.InterpreterPath
	default:
		res.Program = r.lookup(target.Interpreter)
	}
	if target.Script != "" && target.Executable == "" {
		res.LeadingArgs = []string{target.Script}
	}

	r.logger().Debug("resolved shim", "name", name, "shim", path, "program", res.Program, "leading_args", res.LeadingArgs)
	return res
}

func (r *ScriptResolver) lookup(name string) string {
	if r.Lookup == nil {
		return name
	}
	p, err := r.Lookup(name)
	if err != nil || p == "" {
		return name
	}
	return p
}

func (r *ScriptResolver) readFile(path string) ([]byte, error) {
	if r.ReadFile != nil {
		return r.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (r *ScriptResolver) exists(path string) bool {
	if r.Exists != nil {
		return r.Exists(path)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *ScriptResolver) interpreters() []string {
	if len(r.Interpreters) > 0 {
		return r.Interpreters
	}
	return DefaultInterpreters
}

func (r *ScriptResolver) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.NopLogger()
	}
	return r.Logger
}

// Target is what a batch script delegates to. Exactly one of Executable and
// Interpreter is set.
type Target struct {
	Executable string

	Interpreter string
	// InterpreterPath is set when the script names a bundled interpreter binary.
	InterpreterPath string
	// Script is the first script file the interpreter is handed.
	Script string
}

var scriptExts = []string{".js", ".mjs", ".cjs", ".ts"}

// ParseScript scans batch script text for an interpreter delegation or an
// explicit executable, whichever appears first. scriptDir replaces the
// %~dp0 and %dp0% placeholders.
func ParseScript(text, scriptDir string, interpreters []string) (Target, bool) {
	var t Target
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if skipLine(line) {
			continue
		}

		for _, tok := range process.SplitCommandLine(line) {
			tok = substitute(assignedValue(tok), scriptDir)
			lower := strings.ToLower(tok)

			if t.Interpreter != "" {
				if t.Script == "" && hasAnySuffix(lower, scriptExts) {
					t.Script = tok
				}
				continue
			}

			if name := interpreterName(lower, interpreters); name != "" {
				t.Interpreter = name
				if strings.ContainsAny(tok, `\/`) {
					t.InterpreterPath = tok
				}
				continue
			}

			if strings.HasSuffix(lower, ".exe") && !strings.Contains(tok, "%") {
				return Target{Executable: tok}, true
			}
		}
	}
	return t, t.Interpreter != ""
}

func skipLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case line == "":
		return true
	case strings.HasPrefix(lower, "rem ") || strings.HasPrefix(lower, "@rem"):
		return true
	case strings.HasPrefix(line, ":"):
		return true
	case strings.HasPrefix(lower, "@echo"):
		return true
	}
	return false
}

// assignedValue returns the right-hand side of a SET-style NAME=value token.
func assignedValue(tok string) string {
	if i := strings.LastIndex(tok, "="); i >= 0 {
		return tok[i+1:]
	}
	return tok
}

func substitute(tok, scriptDir string) string {
	lower := strings.ToLower(tok)
	for _, ph := range []string{"%~dp0", "%dp0%"} {
		if strings.HasPrefix(lower, ph) {
			rest := strings.TrimLeft(tok[len(ph):], `\/`)
			return strings.TrimRight(scriptDir, `\/`) + `\` + rest
		}
	}
	return tok
}

func interpreterName(lowerTok string, interpreters []string) string {
	base := lowerTok[strings.LastIndexAny(lowerTok, `\/`)+1:]
	base = strings.TrimSuffix(base, ".exe")
	if slices.Contains(interpreters, base) {
		return base
	}
	return ""
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func ext(path string) string {
	base := path[strings.LastIndexAny(path, `\/`)+1:]
	if i := strings.LastIndex(base, "."); i > 0 {
		return strings.ToLower(base[i:])
	}
	return ""
}

func dir(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[:i]
	}
	return "."
}
