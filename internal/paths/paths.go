// Package paths computes the canonical on-disk locations of the vault and
// the restore target. The directory layout is the addressing scheme for all
// vaulted files and must stay stable across versions.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// vaultDirName is dot-prefixed so the vault tree stays out of casual
	// directory listings. Hiding is by location only; contents are not
	// encrypted.
	vaultDirName   = ".fv"
	restoreDirName = "restored"
)

// Resolver computes and creates the vault root and restore target. It is
// stateless apart from the directory-creation side effect and safe to call
// concurrently: creation tolerates "already exists" races.
type Resolver struct {
	vaultDir   string
	restoreDir string
}

// NewResolver creates a resolver rooted at dataDir. vaultOverride and
// restoreOverride replace the default locations when non-empty (set from
// config).
func NewResolver(dataDir, vaultOverride, restoreOverride string) *Resolver {
	vault := filepath.Join(dataDir, "vault", vaultDirName)
	if vaultOverride != "" {
		vault = vaultOverride
	}
	restore := filepath.Join(dataDir, restoreDirName)
	if restoreOverride != "" {
		restore = restoreOverride
	}
	return &Resolver{vaultDir: vault, restoreDir: restore}
}

// VaultRoot returns the absolute vault root, creating it (and parents) if
// absent. Idempotent.
func (r *Resolver) VaultRoot() (string, error) {
	return ensureDir(r.vaultDir, 0700)
}

// RestoreTarget returns the absolute publicly-visible restore directory,
// creating it if absent. Idempotent.
func (r *Resolver) RestoreTarget() (string, error) {
	return ensureDir(r.restoreDir, 0755)
}

func ensureDir(dir string, perm os.FileMode) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, perm); err != nil {
		return "", fmt.Errorf("creating %s: %w", abs, err)
	}
	return abs, nil
}
