package app

import (
	"fmt"
	"os"
	"time"

	"fv-go/internal/config"
	"fv-go/internal/credential"
	"fv-go/internal/database"
	"fv-go/internal/fs"
	"fv-go/internal/fv"
	"fv-go/internal/paths"
)

// FVApp is the application layer between the CLI and the core components.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the store lifecycle on Close.
type FVApp struct {
	cfg       *config.Config
	store     *database.Store
	creds     *credential.Store
	custodian *fv.Custodian
	session   *fv.Session
	importer  *fv.Importer
	resolver  *paths.Resolver
	clock     fv.Clock
	logger    fv.Logger
	op        *VaultOperation
	logFile   *os.File
}

// NewFVApp creates a fully wired FVApp from the given config.
// operation identifies the CLI command being run (e.g. "Import", "Unhide").
// The caller must call Close when done.
func NewFVApp(cfg *config.Config, operation string) (*FVApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	store, err := database.Open(cfg.DatabasePath())
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("store schema out of date (run fv init): %w", err)
	}

	resolver := paths.NewResolver(cfg.BaseDir, cfg.Vault.VaultDir, cfg.Vault.RestoreDir)
	vaultRoot, err := resolver.VaultRoot()
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}

	clock := fv.RealClock{}
	creds := credential.NewStore(store, log)
	custodian := fv.NewCustodian(vaultRoot, log, clock)

	session, err := fv.NewSession(creds, store, clock, log,
		cfg.InactivityTimeout(), lockoutTiers(cfg))
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	importer := fv.NewImporter(custodian, store, log, clock, fv.UUIDGenerator{})

	return &FVApp{
		cfg:       cfg,
		store:     store,
		creds:     creds,
		custodian: custodian,
		session:   session,
		importer:  importer,
		resolver:  resolver,
		clock:     clock,
		logger:    log,
		op:        NewVaultOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// lockoutTiers converts the configured schedule, falling back to the default
// when none is configured.
func lockoutTiers(cfg *config.Config) []fv.LockoutTier {
	if len(cfg.Session.Lockout) == 0 {
		return fv.DefaultLockoutTiers
	}
	tiers := make([]fv.LockoutTier, len(cfg.Session.Lockout))
	for i, t := range cfg.Session.Lockout {
		tiers[i] = fv.LockoutTier{
			Failures: t.Failures,
			Cooldown: time.Duration(t.CooldownSeconds) * time.Second,
		}
	}
	return tiers
}

// InitStore opens (or creates) the store and migrates it to the latest
// schema. Used by fv init; other commands refuse an out-of-date schema.
func InitStore(cfg *config.Config) error {
	store, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.MigrateUp(); err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	return nil
}

// Session returns the session state machine.
func (a *FVApp) Session() *fv.Session { return a.session }

// Credentials returns the credential store.
func (a *FVApp) Credentials() fv.CredentialStore { return a.creds }

// SetCredential stores a new PIN and moves the session out of setup mode.
func (a *FVApp) SetCredential(secret string) error {
	if err := a.creds.SetCredential(secret); err != nil {
		return err
	}
	a.session.NotifyCredentialCreated()
	return nil
}

// Import expands the raw paths into sources (directories recurse, honoring
// .fvskip patterns) and runs them through the import coordinator.
func (a *FVApp) Import(rawPaths []string, into string, deleteOriginals bool, fn fv.ProgressFunc) (*fv.Summary, error) {
	matcher := fs.DefaultSkipMatcher(nil)
	sources, err := fs.FindSources(rawPaths, matcher)
	if err != nil {
		return nil, fmt.Errorf("expanding sources: %w", err)
	}
	return a.importer.Run(sources, into, deleteOriginals, fn)
}

// Unhide moves a vaulted file back to public storage. An empty restoreDir
// means the configured restore target.
func (a *FVApp) Unhide(path string, restoreDir string) (*fv.Entry, error) {
	if restoreDir == "" {
		var err error
		restoreDir, err = a.resolver.RestoreTarget()
		if err != nil {
			return nil, fmt.Errorf("resolving restore target: %w", err)
		}
	}
	return a.custodian.UnhideFile(path, restoreDir)
}

// List scans the vault tree rooted at dir (empty for the whole vault).
func (a *FVApp) List(dir string) (*fv.Stats, error) {
	return a.custodian.ListTree(dir)
}

// Delete removes a vault file or directory. Reports success as a bool.
func (a *FVApp) Delete(path string) bool {
	return a.custodian.DeleteItem(path)
}

// Rename renames a vault item in place and returns the resulting path.
func (a *FVApp) Rename(path, newName string) (string, error) {
	return a.custodian.RenameItem(path, newName)
}

// Move relocates a vault item to another vault directory and returns the
// resulting path.
func (a *FVApp) Move(path, destRelDir string) (string, error) {
	return a.custodian.MoveItem(path, destRelDir)
}

// History returns the most recent import jobs.
func (a *FVApp) History(limit int) ([]*fv.Job, error) {
	return a.store.ListImportJobs(limit)
}

// Operations returns the most recent CLI operations.
func (a *FVApp) Operations(limit int) ([]*database.OperationRecord, error) {
	return a.store.ListOperations(limit)
}

// MarkError flags the current operation as failed for the operation log.
func (a *FVApp) MarkError() {
	a.op.MarkError()
}

// Close persists the operation record and releases all resources.
func (a *FVApp) Close() error {
	var firstErr error

	id, err := a.store.RecordOperation(a.op.Operation, a.op.Parameters, a.op.Status, a.clock.Now())
	if err != nil {
		firstErr = fmt.Errorf("recording operation: %w", err)
	} else {
		a.op.ID = id
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
