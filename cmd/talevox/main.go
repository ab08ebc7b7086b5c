package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Mangusthvile/talevox/internal/app"
	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/vox"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// appVersion is stamped into archive metadata when the config does not
// pin its own app_version.
const appVersion = "0.3.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a VoxApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "backup", "scan").
func newApp(cmd *cobra.Command, operation string) (*app.VoxApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = appVersion
	}

	a, err := app.NewVoxApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

var rootCmd = &cobra.Command{
	Use:   "talevox",
	Short: "Backup and remote reconciliation for the talevox reader",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		switch platform {
		case vox.PlatformWeb, vox.PlatformAndroid, vox.PlatformIOS:
		default:
			return fmt.Errorf("unknown platform %q (want web, android, or ios)", platform)
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(platform, defaults["base_dir"])
		cfg.AppVersion = appVersion

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Platform: %s\n", platform)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Platform:    %s\n", cfg.Platform)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s (%s)\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("Preferences: %s (%s)\n", cfg.Preferences.Type, cfg.Preferences.Path)
		fmt.Printf("Remote:      %s\n", cfg.Remote.Type)
		fmt.Printf("Backups:     folder %q, local %s, keep %d\n",
			cfg.Backup.FolderName, cfg.Backup.LocalDir, cfg.Backup.Keep)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Package all application state into a backup archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		toRemote, _ := cmd.Flags().GetBool("to-remote")
		noAudio, _ := cmd.Flags().GetBool("no-audio")
		noText, _ := cmd.Flags().GetBool("no-chapter-text")
		noAttach, _ := cmd.Flags().GetBool("no-attachments")
		noDiag, _ := cmd.Flags().GetBool("no-diagnostics")
		withTokens, _ := cmd.Flags().GetBool("include-tokens")

		a, err := newApp(cmd, "backup")
		if err != nil {
			return err
		}
		defer a.Close()

		opts := vox.DefaultBackupOptions()
		opts.IncludeAudio = !noAudio
		opts.IncludeChapterText = !noText
		opts.IncludeAttachments = !noAttach
		opts.IncludeDiagnostics = !noDiag
		opts.IncludeOAuthTokens = withTokens

		res, err := a.Backup(cmd.Context(), opts, toRemote)
		if errors.Is(err, vox.ErrBusy) {
			fmt.Println("Another backup or restore is already running; skipped.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Packaged %s (%d bytes, %d manifest entries)\n",
			res.ArtifactName, res.Bytes, len(res.Manifest))
		if toRemote {
			fmt.Printf("Uploaded to remote folder as %s\n", res.RemoteFileID)
		} else {
			fmt.Printf("Saved to %s\n", res.LocalPath)
		}
		printWarnings(res.Warnings)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore [FILE]",
	Short: "Replay a backup archive, replacing all local state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromRemote, _ := cmd.Flags().GetBool("from-remote")
		yes, _ := cmd.Flags().GetBool("yes")

		if fromRemote == (len(args) == 1) {
			return fmt.Errorf("restore needs an archive file or --from-remote (exactly one)")
		}

		if !yes {
			ok, err := confirmRestore()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Restore aborted.")
				return nil
			}
		}

		a, err := newApp(cmd, "restore")
		if err != nil {
			return err
		}
		defer a.Close()

		var name string
		var res *vox.RestoreResult
		if fromRemote {
			name, res, err = a.RestoreFromRemote(cmd.Context())
		} else {
			name = args[0]
			res, err = a.RestoreFromFile(cmd.Context(), args[0])
		}
		if errors.Is(err, vox.ErrBusy) {
			fmt.Println("Another backup or restore is already running; skipped.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %s (schema v%d, created %s)\n",
			name, res.SchemaVersion, res.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  %d book(s), %d chapter(s), %d attachment(s)\n",
			res.Books, res.Chapters, res.Attachments)
		fmt.Printf("  %d preference(s), %d file(s) written\n",
			res.Preferences, res.FilesWritten)
		printWarnings(res.Warnings)
		return nil
	},
}

// confirmRestore asks for interactive confirmation. A non-terminal stdin
// cannot confirm and must pass --yes instead.
func confirmRestore() (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to confirm the restore")
	}
	fmt.Print("Restoring replaces all local talevox state. Continue? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan BOOK_ID",
	Short: "Reconcile a book's chapters against its remote folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderID, _ := cmd.Flags().GetString("folder")

		a, err := newApp(cmd, "scan")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ScanBook(cmd.Context(), args[0], folderID)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Checked %d remote file(s)\n", res.TotalChecked)
		if len(res.UpdatedChapters) > 0 {
			fmt.Printf("Updated %d chapter record(s)\n", len(res.UpdatedChapters))
		}
		if len(res.MissingTextIDs) > 0 {
			fmt.Printf("Missing text:  %s\n", strings.Join(res.MissingTextIDs, ", "))
		}
		if len(res.MissingAudioIDs) > 0 {
			fmt.Printf("Missing audio: %s\n", strings.Join(res.MissingAudioIDs, ", "))
		}
		for _, f := range res.StrayFiles {
			fmt.Printf("Stray file: %s\n", f.Name)
		}
		for _, f := range res.Duplicates {
			fmt.Printf("Duplicate:  %s\n", f.Name)
		}
		if len(res.MissingTextIDs) == 0 && len(res.MissingAudioIDs) == 0 &&
			len(res.StrayFiles) == 0 && len(res.Duplicates) == 0 {
			fmt.Println("Remote folder is in sync.")
		}
		return nil
	},
}

// folders command
var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage remote book folders",
}

var foldersInitCmd = &cobra.Command{
	Use:   "init BOOK_ID",
	Short: "Create the remote folder layout and manifests for a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "folders-init")
		if err != nil {
			return err
		}
		defer a.Close()

		folders, err := a.InitBookFolders(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("initializing folders: %w", err)
		}

		fmt.Printf("Root:  %s\n", folders.RootID)
		fmt.Printf("Meta:  %s\n", folders.MetaID)
		fmt.Printf("Text:  %s\n", folders.TextID)
		fmt.Printf("Audio: %s\n", folders.AudioID)
		fmt.Printf("Trash: %s\n", folders.TrashID)
		return nil
	},
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove backup artifacts beyond the retention count",
	RunE: func(cmd *cobra.Command, args []string) error {
		toRemote, _ := cmd.Flags().GetBool("remote")
		keep, _ := cmd.Flags().GetInt("keep")

		a, err := newApp(cmd, "prune")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PruneBackups(cmd.Context(), toRemote, keep); err != nil {
			return fmt.Errorf("pruning: %w", err)
		}
		fmt.Println("Old backups pruned.")
		return nil
	},
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage backup artifacts",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		fromRemote, _ := cmd.Flags().GetBool("remote")

		a, err := newApp(cmd, "backups-list")
		if err != nil {
			return err
		}
		defer a.Close()

		artifacts, err := a.ListBackups(cmd.Context(), fromRemote)
		if err != nil {
			return err
		}

		if len(artifacts) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, art := range artifacts {
			fmt.Printf("%s  %10d  %s\n",
				art.ModifiedAt.Format("2006-01-02 15:04:05"), art.Size, art.Name)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent operations and driver jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, j := range jobs {
			fmt.Printf("%s  %-14s  %-8s  %s\n",
				j.CreatedAt.Format("2006-01-02 15:04:05"), j.Kind, j.State, j.Payload)
		}
		return nil
	},
}

// doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "doctor")
		if err != nil {
			return err
		}
		defer a.Close()

		failed := false
		for _, c := range a.Doctor(cmd.Context()) {
			status := "ok"
			if !c.OK {
				status = "FAIL"
				failed = true
			}
			fmt.Printf("%-4s  %-12s  %s\n", status, c.Name, c.Detail)
		}
		fmt.Printf("\nInstall ID: %s\n", a.InstallID())

		if failed {
			return fmt.Errorf("environment problems found")
		}
		return nil
	},
}

func init() {
	rootCmd.Version = appVersion

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("platform", vox.PlatformAndroid, "Platform label for archives (web, android, ios)")

	// folders subcommands
	foldersCmd.AddCommand(foldersInitCmd)

	// backups subcommands
	backupsCmd.AddCommand(backupsListCmd)
	backupsListCmd.Flags().Bool("remote", false, "List artifacts in the remote backup folder")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().Bool("to-remote", false, "Upload the archive to the remote backend")
	backupCmd.Flags().Bool("no-audio", false, "Exclude synthesized audio")
	backupCmd.Flags().Bool("no-chapter-text", false, "Exclude chapter text")
	backupCmd.Flags().Bool("no-attachments", false, "Exclude attachments")
	backupCmd.Flags().Bool("no-diagnostics", false, "Exclude diagnostics")
	backupCmd.Flags().Bool("include-tokens", false, "Include OAuth tokens in the archive")
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().Bool("from-remote", false, "Fetch the latest remote artifact")
	restoreCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().String("folder", "", "Remote folder ID to scan (default: the book's root folder)")
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().Bool("remote", false, "Prune the remote backup folder")
	pruneCmd.Flags().IntP("keep", "k", 0, "Artifacts to keep (default: configured retention)")
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of records to show")
	rootCmd.AddCommand(doctorCmd)
}
