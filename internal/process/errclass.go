package process

import (
	"errors"
	"io/fs"
	"os/exec"
)

// IsNotFound reports whether err means the program does not exist. An
// unusable working directory is not a not-found error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var dirErr *DirError
	if errors.As(err, &dirErr) {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// IsBadFormat reports whether err means the file exists but the OS refused
// to execute it as a program image.
func IsBadFormat(err error) bool {
	if err == nil {
		return false
	}
	return isBadFormat(err)
}

// ShouldFallBack reports whether a direct spawn failure sends the launcher to
// the shell fallback.
func ShouldFallBack(err error) bool {
	return IsNotFound(err) || IsBadFormat(err)
}
