package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fv-go/internal/app"
	"fv-go/internal/config"
	"fv-go/internal/fv"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an FVApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Import", "Unhide").
func newApp(operation string) (*app.FVApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFVApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readSecret prompts for a secret without echoing it.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(raw), nil
}

// ensureUnlocked gates vault-content commands behind the session. In setup
// mode (no PIN yet) access is open; otherwise the user is prompted and the
// unlock goes through the session, so the cooldown schedule applies.
func ensureUnlocked(a *app.FVApp) error {
	switch a.Session().CurrentState() {
	case fv.StateSetup, fv.StateUnlocked:
		return nil
	}

	if remaining := a.Session().RemainingCooldown(); remaining > 0 {
		return fmt.Errorf("too many failed attempts; retry in %s", remaining.Round(time.Second))
	}

	secret, err := readSecret("PIN: ")
	if err != nil {
		return err
	}
	if err := a.Session().RequestUnlock(secret); err != nil {
		if errors.Is(err, fv.ErrCooldownActive) {
			return fmt.Errorf("incorrect PIN; %v", err)
		}
		return fmt.Errorf("incorrect PIN")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "fv",
	Short: "Personal file vault",
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if err := app.InitStore(cfg); err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set a PIN with: fv pin set")
		return nil
	},
}

// pin command
var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the vault PIN",
}

var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set or change the PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetCredential")
		if err != nil {
			return err
		}
		defer a.Close()

		// Changing an existing PIN requires proving the old one first.
		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		secret, err := readSecret("New PIN: ")
		if err != nil {
			a.MarkError()
			return err
		}
		confirm, err := readSecret("Confirm PIN: ")
		if err != nil {
			a.MarkError()
			return err
		}
		if secret != confirm {
			a.MarkError()
			return fmt.Errorf("PINs do not match")
		}

		if err := a.SetCredential(secret); err != nil {
			a.MarkError()
			if errors.Is(err, fv.ErrEmptySecret) {
				return fmt.Errorf("PIN must not be empty")
			}
			return err
		}

		fmt.Println("PIN set.")
		return nil
	},
}

var pinClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the PIN (vault reset)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearCredential")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		if err := a.Credentials().ClearCredential(); err != nil {
			a.MarkError()
			return err
		}
		fmt.Println("PIN removed. The vault is no longer locked.")
		return nil
	},
}

var pinStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PinStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("State: %s\n", a.Session().CurrentState())
		if attempts := a.Session().FailedAttempts(); attempts > 0 {
			fmt.Printf("Failed attempts: %d\n", attempts)
		}
		if remaining := a.Session().RemainingCooldown(); remaining > 0 {
			fmt.Printf("Cooldown: %s remaining\n", remaining.Round(time.Second))
		}
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH...",
	Short: "Hide files in the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		into, _ := cmd.Flags().GetString("into")
		keep, _ := cmd.Flags().GetBool("keep-original")

		a, err := newApp("Import")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		summary, err := a.Import(args, into, !keep, func(p fv.Progress) {
			if !p.Done {
				fmt.Printf("[%d/%d] %s\n", p.Index+1, p.Total, p.Name)
			}
		})
		if err != nil {
			a.MarkError()
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d file(s), %d failed\n", summary.Success, summary.Failed)
		if summary.Retained > 0 {
			fmt.Printf("Warning: %d original(s) could not be removed and are still visible\n", summary.Retained)
		}
		if summary.Failed > 0 {
			a.MarkError()
		}
		return nil
	},
}

// unhide command
var unhideCmd = &cobra.Command{
	Use:   "unhide PATH",
	Short: "Restore a vaulted file to public storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")

		a, err := newApp("Unhide")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			a.MarkError()
			return fmt.Errorf("resolving path: %w", err)
		}

		entry, err := a.Unhide(absPath, to)
		if err != nil {
			a.MarkError()
			return err
		}
		fmt.Printf("Restored %s to %s\n", entry.Name, entry.Path)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [DIR]",
	Short: "List vault contents and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListTree")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}

		stats, err := a.List(dir)
		if err != nil {
			a.MarkError()
			return err
		}

		printFolder(stats.Root, "")
		fmt.Printf("\n%d file(s), %d bytes\n", stats.TotalFiles, stats.TotalSize)
		for _, cat := range []fv.Category{fv.CategoryPhoto, fv.CategoryVideo, fv.CategoryDocument, fv.CategoryOther} {
			tally := stats.ByCategory[cat]
			if tally.Files > 0 {
				fmt.Printf("  %-9s %d file(s), %d bytes\n", cat, tally.Files, tally.Bytes)
			}
		}
		return nil
	},
}

func printFolder(f *fv.Folder, indent string) {
	fmt.Printf("%s%s/  (%d files, %d bytes)\n", indent, f.Name, f.TotalFiles, f.TotalSize)
	for _, it := range f.Items() {
		switch it.Kind {
		case fv.ItemDir:
			printFolder(it.Dir, indent+"  ")
		case fv.ItemFile:
			fmt.Printf("%s  %s  %d  %s\n", indent, it.File.Name, it.File.Size, it.File.Category)
		}
	}
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a vault file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			a.MarkError()
			return fmt.Errorf("resolving path: %w", err)
		}

		if !a.Delete(absPath) {
			a.MarkError()
			return fmt.Errorf("could not delete %s", absPath)
		}
		fmt.Printf("Deleted %s\n", absPath)
		return nil
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv PATH DIR",
	Short: "Move a vault item to another vault folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Move")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			a.MarkError()
			return fmt.Errorf("resolving path: %w", err)
		}

		dest, err := a.Move(absPath, args[1])
		if err != nil {
			a.MarkError()
			return err
		}
		fmt.Printf("Moved to %s\n", dest)
		return nil
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename PATH NEWNAME",
	Short: "Rename a vault item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			a.MarkError()
			return fmt.Errorf("resolving path: %w", err)
		}

		dest, err := a.Rename(absPath, args[1])
		if err != nil {
			a.MarkError()
			return err
		}
		fmt.Printf("Renamed to %s\n", dest)
		return nil
	},
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage vault settings",
}

var settingsFingerprintCmd = &cobra.Command{
	Use:       "fingerprint (on|off|show)",
	Short:     "Toggle biometric unlock",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "show"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlagCommand("SetFingerprint", args[0],
			func(a *app.FVApp, enabled bool) error {
				return a.Credentials().SetFingerprintEnabled(enabled)
			},
			func(a *app.FVApp) (bool, error) {
				return a.Credentials().IsFingerprintEnabled()
			})
	},
}

var settingsStripCmd = &cobra.Command{
	Use:       "strip (on|off|show)",
	Short:     "Toggle metadata stripping on import",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "show"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlagCommand("SetMetadataStripping", args[0],
			func(a *app.FVApp, enabled bool) error {
				return a.Credentials().SetMetadataStrippingEnabled(enabled)
			},
			func(a *app.FVApp) (bool, error) {
				return a.Credentials().IsMetadataStrippingEnabled()
			})
	},
}

func runFlagCommand(operation, verb string, set func(*app.FVApp, bool) error, get func(*app.FVApp) (bool, error)) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := ensureUnlocked(a); err != nil {
		a.MarkError()
		return err
	}

	switch verb {
	case "show":
		enabled, err := get(a)
		if err != nil {
			a.MarkError()
			return err
		}
		if enabled {
			fmt.Println("on")
		} else {
			fmt.Println("off")
		}
		return nil
	case "on", "off":
		if err := set(a, verb == "on"); err != nil {
			a.MarkError()
			return err
		}
		fmt.Println("Updated.")
		return nil
	default:
		return fmt.Errorf("unknown argument: %s", verb)
	}
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View import job history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		jobs, err := a.History(limit)
		if err != nil {
			a.MarkError()
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No imports recorded.")
			return nil
		}

		for _, job := range jobs {
			status := "done"
			if job.Cancelled {
				status = "cancelled"
			}
			fmt.Printf("%s  %s  %d ok / %d failed  %-9s  %s\n",
				job.ID[:8],
				job.StartedAt.Format("2006-01-02 15:04:05"),
				job.Success,
				job.Failed,
				status,
				job.FinishedAt.Sub(job.StartedAt).Truncate(time.Millisecond),
			)
		}
		return nil
	},
}

// ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "View the operation log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Operations")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUnlocked(a); err != nil {
			a.MarkError()
			return err
		}

		ops, err := a.Operations(limit)
		if err != nil {
			a.MarkError()
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			fmt.Printf("#%d  %-20s  %s  %s\n",
				op.ID,
				op.Operation,
				op.CreatedAt.Format("2006-01-02 15:04:05"),
				op.Status,
			)
		}
		return nil
	},
}

func init() {
	pinCmd.AddCommand(pinSetCmd)
	pinCmd.AddCommand(pinClearCmd)
	pinCmd.AddCommand(pinStatusCmd)

	settingsCmd.AddCommand(settingsFingerprintCmd)
	settingsCmd.AddCommand(settingsStripCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("into", "", "Vault folder to import into (relative to the vault root)")
	importCmd.Flags().Bool("keep-original", false, "Do not delete the originals after import")
	rootCmd.AddCommand(unhideCmd)
	unhideCmd.Flags().String("to", "", "Restore directory (default: the configured restore target)")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of jobs to show")
	rootCmd.AddCommand(opsCmd)
	opsCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
