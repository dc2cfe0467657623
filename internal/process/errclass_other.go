//go:build !windows

package process

import (
	"errors"
	"syscall"
)

func isBadFormat(err error) bool {
	return errors.Is(err, syscall.ENOEXEC)
}
