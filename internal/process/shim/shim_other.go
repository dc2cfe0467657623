//go:build !windows

package shim

import "github.com/Iron-Ham/claudelink/internal/logging"

// New returns the platform resolver. Outside Windows wrappers are shebang
// scripts or symlinks the kernel follows itself, so names pass through.
func New(_ []string, _ *logging.Logger) Resolver {
	return Passthrough{}
}
