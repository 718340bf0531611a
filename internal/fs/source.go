// Package fs supplies the OS-backed import sources consumed by the
// custodian. The custodian itself only sees the fv.Source capability; this
// package is where real files, pickers or test fixtures turn into sources.
package fs

import (
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"fv-go/internal/fv"
)

// LocalSource is an fv.Source over a file on the local filesystem.
type LocalSource struct {
	path string
}

// NewLocalSource creates a source for the file at path.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{path: path}
}

// DisplayName returns the base name of the underlying file. It fails when
// the file does not exist or is not a regular file, so unreadable sources
// are rejected before any copying starts.
func (s *LocalSource) DisplayName() (string, error) {
	info, err := os.Lstat(s.path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", s.path)
	}
	return filepath.Base(s.path), nil
}

// Size returns the file size, or -1 when it cannot be determined.
func (s *LocalSource) Size() int64 {
	info, err := os.Lstat(s.path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// Open opens the file for reading.
func (s *LocalSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// Remove deletes the original file.
func (s *LocalSource) Remove() error {
	return os.Remove(s.path)
}

// Compile-time check that LocalSource implements fv.Source.
var _ fv.Source = (*LocalSource)(nil)

// FindSources expands raw paths into sources. A regular file becomes one
// source; a directory contributes all regular files under it, recursively,
// minus anything the skip matcher rejects. A .fvskip file at a directory's
// root adds patterns for that directory only. matcher may be nil.
func FindSources(rawPaths []string, matcher *SkipMatcher) ([]fv.Source, error) {
	var sources []fv.Source
	for _, raw := range rawPaths {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", raw, err)
		}
		info, err := os.Lstat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}

		if !info.IsDir() {
			sources = append(sources, NewLocalSource(abs))
			continue
		}

		skip, err := ParseSkipFile(filepath.Join(abs, ".fvskip"))
		if err != nil {
			return nil, fmt.Errorf("reading skip file in %s: %w", abs, err)
		}
		local := NewSkipMatcher(skip)

		err = filepath.WalkDir(abs, func(p string, d iofs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			rel, relErr := filepath.Rel(abs, p)
			if relErr == nil {
				if matcher != nil && matcher.Match(rel) {
					return nil
				}
				if local.Match(rel) {
					return nil
				}
			}
			sources = append(sources, NewLocalSource(p))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", abs, err)
		}
	}
	return sources, nil
}
