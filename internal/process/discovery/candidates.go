package discovery

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/claudelink/internal/process"
)

// Candidate is a program from a descendant's command line that may be
// started directly.
type Candidate struct {
	Program string
	// Script is the file an interpreter candidate was running.
	Script string
}

// Args returns the arguments a candidate is started with.
func (c Candidate) Args(userArgs []string) []string {
	if c.Script == "" {
		return append([]string(nil), userArgs...)
	}
	return append([]string{c.Script}, userArgs...)
}

// Matcher decides which command-line tokens are candidates.
type Matcher struct {
	interpreters map[string]bool
	patterns     []glob.Glob
}

// NewMatcher compiles executable patterns. Patterns and interpreter names
// are matched case-insensitively.
func NewMatcher(interpreters, patterns []string) (*Matcher, error) {
	m := &Matcher{interpreters: make(map[string]bool, len(interpreters))}
	for _, name := range interpreters {
		m.interpreters[strings.ToLower(name)] = true
	}
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("compile executable pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Candidates extracts candidates from p's command line in token order.
// An interpreter only qualifies together with the script that follows it,
// even when its image also matches an executable pattern.
//
// Windows snapshots carry only the quoted image path, never the arguments,
// so there an interpreter worker (node.exe cli.js) yields no candidate and
// only executable patterns can match.
func (m *Matcher) Candidates(p ProcessInfo) []Candidate {
	if m == nil {
		return nil
	}
	tokens := process.SplitCommandLine(p.CommandLine)

	var out []Candidate
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		base := lower[strings.LastIndexAny(lower, `\/`)+1:]

		if m.interpreters[strings.TrimSuffix(base, ".exe")] {
			if i+1 < len(tokens) && isScriptToken(tokens[i+1]) {
				out = append(out, Candidate{Program: tok, Script: tokens[i+1]})
				i++
			}
			continue
		}
		if m.matchesPattern(lower, base) {
			out = append(out, Candidate{Program: tok})
		}
	}
	return out
}

func (m *Matcher) matchesPattern(lower, base string) bool {
	for _, g := range m.patterns {
		if g.Match(lower) || g.Match(base) {
			return true
		}
	}
	return false
}

func isScriptToken(tok string) bool {
	return tok != "" && !strings.HasPrefix(tok, "-")
}
