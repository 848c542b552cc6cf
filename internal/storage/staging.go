// Package storage stages uploaded files on local disk and reports their usage.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for upload names that do not name a file.
var ErrInvalidName = errors.New("invalid file name")

// Staging keeps uploaded files under one directory, one file per base name.
type Staging struct {
	dir string
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	return &Staging{dir: dir}, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string { return s.dir }

// Save writes r to <dir>/<base name of name>, replacing an earlier upload of the
// same name. The content is written to a temporary file first and renamed into place.
func (s *Staging) Save(name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dest := filepath.Join(s.dir, base)

	tmp := filepath.Join(s.dir, ".upload-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close staged file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move staged file: %w", err)
	}
	return dest, nil
}

// Usage returns the bytes held by staged files.
func (s *Staging) Usage() (int64, error) {
	return DiskUsageBytes(s.dir)
}
