package safeio

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrTraversal is returned for paths containing ".." segments.
	ErrTraversal = errors.New("path traversal detected")

	// ErrAbsolute is returned where only relative paths are allowed.
	ErrAbsolute = errors.New("absolute path not allowed")

	// ErrEmpty is returned for empty paths.
	ErrEmpty = errors.New("empty path")
)

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, seg := range strings.Split(filepath.ToSlash(c), "/") {
		if seg == ".." {
			return "", ErrTraversal
		}
	}
	return filepath.ToSlash(c), nil
}

// CleanRelativePath validates a slash-separated name that must stay below
// some root (a repository path, a published file name).
func CleanRelativePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrEmpty
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", ErrAbsolute
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrTraversal
		}
	}
	return path.Clean(p), nil
}

// ReadUserFile reads a user-provided path after CleanUserPath.
func ReadUserFile(p string) ([]byte, error) {
	c, err := CleanUserPath(p)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path has been cleaned and traversal rejected above
	return os.ReadFile(filepath.FromSlash(c))
}

// OpenAppend opens path for appending, creating the file (and its directory) when missing.
func OpenAppend(p string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, err
	}
	// #nosec G304 -- callers pass paths built from configured directories
	return os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// AppendFile appends data to path, creating the file (and its directory) when missing.
func AppendFile(p string, data []byte) error {
	f, err := OpenAppend(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
