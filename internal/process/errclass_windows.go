//go:build windows

package process

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isBadFormat(err error) bool {
	return errors.Is(err, windows.ERROR_BAD_EXE_FORMAT)
}
