// Package safe provides guarded file operations for local artifacts:
// configuration files, extracted agent binaries and trace output.
package safe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultMaxFileSize is the default maximum file size for safe file operations (1MB).
const DefaultMaxFileSize = 1 << 20

// ErrTooLarge is returned when content exceeds the configured maximum size.
var ErrTooLarge = errors.New("file exceeds maximum allowed size")

// Options configures the behavior of the file helpers.
type Options struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// Perm is the permission mode for files being written. Zero means 0600.
	Perm os.FileMode
	// AllowSymlinks allows reading from symlink sources. Default is false for security.
	AllowSymlinks bool
}

func (o *Options) maxSize() int64 {
	if o == nil || o.MaxSize == 0 {
		return DefaultMaxFileSize
	}
	return o.MaxSize
}

func (o *Options) perm() os.FileMode {
	if o == nil || o.Perm == 0 {
		return 0o600
	}
	return o.Perm
}

// ReadFile reads a file with security validations.
// It rejects symlinks by default to prevent file inclusion attacks,
// validates file size, and ensures only regular files are read.
func ReadFile(path string, opts *Options) ([]byte, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if opts == nil || !opts.AllowSymlinks {
			return nil, fmt.Errorf("file %q is a symlink, which is not allowed for security reasons", path)
		}
		info, err = os.Stat(cleanPath)
		if err != nil {
			return nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}

	if info.Size() > opts.maxSize() {
		return nil, fmt.Errorf("%w of %d bytes", ErrTooLarge, opts.maxSize())
	}

	return os.ReadFile(cleanPath)
}

// ReplaceFile deletes any existing file at path and writes data to a fresh
// file. Size limits do not apply; the caller already holds data in memory.
func ReplaceFile(path string, data []byte, opts *Options) error {
	cleanPath := filepath.Clean(path)

	if info, err := os.Lstat(cleanPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("path %q is a directory", path)
		}
		if err := os.Remove(cleanPath); err != nil {
			return fmt.Errorf("remove existing file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	// #nosec G304 - the output path is chosen by the user.
	f, err := os.OpenFile(cleanPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, opts.perm())
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteFromReader copies r into a newly truncated file at dst, refusing to
// write more than MaxSize bytes. It returns the number of bytes written.
func WriteFromReader(dst string, r io.Reader, opts *Options) (int64, error) {
	limit := opts.maxSize()

	// #nosec G304 - dst is a scratch path chosen by the caller.
	f, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, opts.perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		_ = f.Close()
		return n, err
	}
	if n > limit {
		_ = f.Close()
		_ = os.Remove(dst)
		return n, fmt.Errorf("%w of %d bytes", ErrTooLarge, limit)
	}
	return n, f.Close()
}

// RemovePath removes a file, logging any failure other than absence.
func RemovePath(path string, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove file")
	}
}
