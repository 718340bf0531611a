package fv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Custodian performs all vault filesystem mutations: import, unhide, delete,
// rename, move and tree scans. Every mutating operation re-checks that its
// target is rooted under the vault directory before touching the filesystem.
//
// All operations are synchronous and blocking; callers are responsible for
// running them off the interactive path and for serializing mutating calls
// (concurrent imports could race on collision-resolution numbering).
type Custodian struct {
	root   string // absolute vault root
	logger Logger
	clock  Clock

	// rename performs the atomic-move attempt. Swappable so the
	// cross-filesystem copy fallback is reachable in tests.
	rename func(oldpath, newpath string) error
}

// ImportResult is the outcome of one successful import.
type ImportResult struct {
	Entry *Entry

	// SourceRetained is true when deletion of the original was requested but
	// failed. The import itself still succeeded; the caller decides whether
	// to warn the user that the original is still visible.
	SourceRetained bool
}

// NewCustodian creates a Custodian over the given vault root. The root must
// already be an absolute path (see paths.Resolver).
func NewCustodian(vaultRoot string, logger Logger, clock Clock) *Custodian {
	return &Custodian{
		root:   filepath.Clean(vaultRoot),
		logger: logger,
		clock:  clock,
		rename: os.Rename,
	}
}

// Root returns the vault root the custodian operates on.
func (c *Custodian) Root() string { return c.root }

// insideVault verifies path is rooted under the vault directory and returns
// its cleaned absolute form. When allowRoot is false the vault root itself is
// rejected too, so mutating operations can never touch the root directory.
// Violations are security-relevant and logged distinctly from I/O failures.
func (c *Custodian) insideVault(path string, allowRoot bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	rel, err := filepath.Rel(c.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		c.logger.Error("vault boundary violation", "path", abs, "root", c.root)
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, abs)
	}
	if rel == "." && !allowRoot {
		c.logger.Error("vault boundary violation", "path", abs, "root", c.root)
		return "", fmt.Errorf("%w: refusing to mutate the vault root", ErrOutsideVault)
	}
	return abs, nil
}

// validateName rejects display names that cannot be used as a single file
// name: empty names, path separators, and the "." / ".." specials.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, '\\') {
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeName, name)
	}
	return nil
}

// dedupName picks a name for dir that does not collide with an existing
// child. On collision it appends " (n)" before the extension, n counting up
// from 1. Probing is side-effect free: no existing file is touched.
func dedupName(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// resolveDestDir resolves (and creates) a destination directory under the
// vault root from an optional relative path. Each segment is validated like
// a file name so ".." can never climb out.
func (c *Custodian) resolveDestDir(relDir string) (string, error) {
	dir := c.root
	if relDir != "" {
		for _, seg := range strings.FieldsFunc(relDir, func(r rune) bool {
			return r == '/' || r == '\\'
		}) {
			if err := validateName(seg); err != nil {
				return "", err
			}
			dir = filepath.Join(dir, seg)
		}
	}
	if _, err := c.insideVault(dir, true); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationUnavailable, err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDestinationUnavailable, dir)
	}
	return dir, nil
}

// entryAt builds an Entry snapshot for an existing regular file.
func entryAt(path string) (*Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	name := filepath.Base(path)
	return &Entry{
		Path:     path,
		Name:     name,
		Category: CategoryOf(name),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// ImportFile copies one source into the vault. relDir optionally places the
// file in a subdirectory of the vault root. When deleteSource is true the
// original is removed after a successful copy; a failed removal does not
// roll back the import and is reported via ImportResult.SourceRetained.
func (c *Custodian) ImportFile(src Source, relDir string, deleteSource bool) (*ImportResult, error) {
	name, err := src.DisplayName()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	destDir, err := c.resolveDestDir(relDir)
	if err != nil {
		return nil, err
	}
	dest := dedupName(destDir, name)

	if err := c.copyIn(src, destDir, dest); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	if deleteSource {
		if err := src.Remove(); err != nil {
			c.logger.Warn("original could not be removed", "name", name, "err", err)
			result.SourceRetained = true
		}
	}

	entry, err := entryAt(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	result.Entry = entry

	c.logger.Info("file imported", "name", entry.Name, "size", entry.Size,
		"category", entry.Category.String(), "source_retained", result.SourceRetained)
	return result, nil
}

// copyIn streams the source bytes to a same-directory temporary file and
// renames it into place, so a failed copy never leaves a partial file under
// the final name.
func (c *Custodian) copyIn(src Source, destDir, dest string) error {
	r, err := src.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(destDir, ".fv-import-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	return nil
}

// UnhideFile moves a vaulted file out to restoreDir, resolving name
// collisions the same way import does. The move is attempted atomically
// first; across filesystem boundaries it falls back to copy, verify size,
// then delete the vault copy.
func (c *Custodian) UnhideFile(path string, restoreDir string) (*Entry, error) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	src, err := c.insideVault(path, false)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(restoreDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDestinationUnavailable, err)
	}
	dest := dedupName(restoreDir, filepath.Base(src))

	if err := c.moveFile(src, dest, info.Size()); err != nil {
		return nil, err
	}

	entry, err := entryAt(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	c.logger.Info("file unhidden", "name", entry.Name, "dest", dest)
	return entry, nil
}

// moveFile renames src to dest, falling back to copy-verify-delete when the
// rename fails (typically EXDEV across storage boundaries). A failed fallback
// removes any partial destination.
func (c *Custodian) moveFile(src, dest string, size int64) error {
	if err := c.rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	written, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written != size {
		err = fmt.Errorf("wrote %d of %d bytes", written, size)
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	if err := os.Remove(src); err != nil {
		// Both copies exist; removing the verified destination keeps the
		// vault as the single owner of the file.
		os.Remove(dest)
		return fmt.Errorf("%w: removing source: %v", ErrMoveFailed, err)
	}
	return nil
}

// DeleteItem removes a file or directory from the vault. Directories are
// removed recursively. The operation reports success as a bool rather than an
// error: false for paths outside the vault, missing targets, or I/O failure.
// A partial directory delete is reported as failure but not undone.
func (c *Custodian) DeleteItem(path string) bool {
	abs, err := c.insideVault(path, false)
	if err != nil {
		return false
	}
	if _, err := os.Lstat(abs); err != nil {
		return false
	}
	if err := os.RemoveAll(abs); err != nil {
		c.logger.Warn("delete failed", "path", abs, "err", err)
		return false
	}
	c.logger.Info("item deleted", "path", abs)
	return true
}

// RenameItem renames a vaulted file or directory in place, applying the same
// collision resolution as import when the new name is taken. Returns the
// resulting absolute path.
func (c *Custodian) RenameItem(path string, newName string) (string, error) {
	abs, err := c.insideVault(path, false)
	if err != nil {
		return "", err
	}
	if err := validateName(newName); err != nil {
		return "", err
	}
	if _, err := os.Lstat(abs); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}

	dest := dedupName(filepath.Dir(abs), newName)
	if err := os.Rename(abs, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	c.logger.Info("item renamed", "from", abs, "to", dest)
	return dest, nil
}

// MoveItem moves a vaulted file or directory to another directory inside the
// vault, given as a path relative to the vault root (empty means the root).
// Returns the resulting absolute path.
func (c *Custodian) MoveItem(path string, destRelDir string) (string, error) {
	abs, err := c.insideVault(path, false)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}

	destDir, err := c.resolveDestDir(destRelDir)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		rel, relErr := filepath.Rel(abs, destDir)
		if relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: cannot move a directory into itself", ErrDestinationUnavailable)
		}
	}

	dest := dedupName(destDir, filepath.Base(abs))
	if err := os.Rename(abs, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	c.logger.Info("item moved", "from", abs, "to", dest)
	return dest, nil
}

// ListTree scans a vault directory depth-first in a single pass, producing
// the folder tree with rolled-up totals and the whole-tree statistics.
// rootDir may be empty to scan the whole vault. The scan is blocking and
// proportional to tree size; callers run it off the interactive path.
func (c *Custodian) ListTree(rootDir string) (*Stats, error) {
	if rootDir == "" {
		rootDir = c.root
	}
	abs, err := c.insideVault(rootDir, true)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}

	stats := &Stats{ByCategory: make(map[Category]CategoryTally)}
	root, err := c.scanDir(abs, stats)
	if err != nil {
		return nil, err
	}
	stats.Root = root
	return stats, nil
}

// scanDir recursively builds the Folder for dir, adding every classified
// file into the flat list and the per-category counters as it goes.
func (c *Custodian) scanDir(dir string, stats *Stats) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	folder := &Folder{Path: dir, Name: filepath.Base(dir)}
	for _, de := range entries {
		full := filepath.Join(dir, de.Name())
		if de.IsDir() {
			child, err := c.scanDir(full, stats)
			if err != nil {
				return nil, err
			}
			folder.Children = append(folder.Children, child)
			folder.TotalFiles += child.TotalFiles
			folder.TotalSize += child.TotalSize
			continue
		}
		if !de.Type().IsRegular() {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}
		entry := &Entry{
			Path:     full,
			Name:     de.Name(),
			Category: CategoryOf(de.Name()),
			Size:     fi.Size(),
			ModTime:  fi.ModTime(),
		}
		folder.Files = append(folder.Files, entry)
		folder.TotalFiles++
		folder.TotalSize += entry.Size

		stats.AllFiles = append(stats.AllFiles, entry)
		tally := stats.ByCategory[entry.Category]
		tally.Files++
		tally.Bytes += entry.Size
		stats.ByCategory[entry.Category] = tally
		stats.TotalFiles++
		stats.TotalSize += entry.Size
	}
	return folder, nil
}
