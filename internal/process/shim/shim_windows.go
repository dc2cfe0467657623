//go:build windows

package shim

import (
	"os/exec"
	"strings"

	"github.com/Iron-Ham/claudelink/internal/logging"
)

// New returns the platform resolver: `where` lookups plus script inspection.
func New(interpreters []string, logger *logging.Logger) Resolver {
	return &ScriptResolver{
		Lookup:       where,
		Interpreters: interpreters,
		Logger:       logger,
	}
}

// where returns the first path `where` prints, falling back to exec.LookPath.
func where(name string) (string, error) {
	out, err := exec.Command("where", name).Output()
	if err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if p := strings.TrimSpace(line); p != "" {
				return p, nil
			}
		}
	}
	return exec.LookPath(name)
}
