package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"invsnap/internal/app"
	"invsnap/internal/config"
	"invsnap/internal/inv"
	"invsnap/internal/report"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var debug bool

// newApp reads the config and creates an InvApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Export", "ArchiveCommit").
func newApp(operation string) (*app.InvApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewInvApp(cfg, operation, app.Options{Debug: debug})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	a.Passphrase = func() (string, error) { return promptPassphrase("Passphrase: ") }
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "invsnap",
	Short:        "Inventory snapshots, reconciliation and archiving",
	SilenceUsage: true,
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults.BaseDir)
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

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s\n", cfg.Store.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Collection:  %s\n", cfg.Inventory.Collection)
		fmt.Printf("Archive:     %s older than %d days -> %s (batches of %s)\n",
			cfg.Archive.Status, cfg.Archive.ThresholdDays, cfg.Archive.Collection,
			humanize.IBytes(uint64(cfg.Archive.MaxBatchBytes)))
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ValidateVault")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVault(); err != nil {
			return fmt.Errorf("vault check failed: %w", err)
		}
		fmt.Println("Vault OK")
		return nil
	},
}

var configEncryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage artifact encryption",
}

var configEncryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the artifact key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage live records",
}

var recordsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load documents from a JSON array into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ImportRecords")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ImportRecords(args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d record(s)\n", n)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot the inventory collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		statsOnly, _ := cmd.Flags().GetBool("stats-only")

		a, err := newApp("Export")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Export(statsOnly)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Print(report.RenderSnapshot(res.Snapshot.Metadata))
		if res.ArtifactName != "" {
			fmt.Printf("\nArtifact: %s (%s)\n", res.ArtifactName, humanize.IBytes(uint64(res.Size)))
		}
		return nil
	},
}

// artifacts command
var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Manage snapshot artifacts",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListArtifacts")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.ListArtifacts()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No artifacts.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify ARTIFACT",
	Short: "Check an artifact's checksum and record count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Verify")
		if err != nil {
			return err
		}
		defer a.Close()

		snapshot, v, err := a.Verify(args[0])
		var verr *inv.VerificationError
		if errors.As(err, &verr) {
			fmt.Printf("%s is INVALID:\n", args[0])
			for _, p := range verr.Problems {
				fmt.Printf("  %s (%s)\n", p.Err, p.Detail)
			}
			return errors.New("verification failed")
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s is valid: %d record(s), checksum %s\n", args[0], v.DocumentCount, v.RecomputedChecksum)
		fmt.Printf("Exported %s\n", humanize.Time(snapshot.Metadata.CreatedAt))
		return nil
	},
}

// compare command
var compareCmd = &cobra.Command{
	Use:   "compare ARTIFACT",
	Short: "Reconcile an artifact against the live collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp("Compare")
		if err != nil {
			return err
		}
		defer a.Close()

		cmp, err := a.Compare(args[0], out)
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}
		fmt.Print(cmp.Report)
		if out != "" {
			fmt.Printf("\nReport written to %s\n", out)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Plan and perform archive moves",
}

var archiveEligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "Show which records the archive policy selects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Eligibility")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Eligibility()
		if err != nil {
			return err
		}
		fmt.Print(report.RenderClassification(c))
		return nil
	},
}

var archivePreviewCmd = &cobra.Command{
	Use:   "preview [IDS...]",
	Short: "Dry-run an archive of the given records (default: all eligible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ArchivePreview")
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.ArchivePreview(args)
		if err != nil {
			return archiveError(err)
		}
		fmt.Print(report.RenderPreview(plan.Preview, plan.Token))
		return nil
	},
}

var archiveCommitCmd = &cobra.Command{
	Use:   "commit --confirm TOKEN [IDS...]",
	Short: "Move records into the archive collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("confirm")

		a, err := newApp("ArchiveCommit")
		if err != nil {
			return err
		}
		defer a.Close()

		moved, err := a.ArchiveCommit(args, token)
		if errors.Is(err, inv.ErrConfirmationMismatch) {
			return fmt.Errorf("%w: the collection changed or the selection differs; run 'invsnap archive preview' again", err)
		}
		if err != nil {
			if moved > 0 {
				fmt.Printf("Archived %d record(s) before the failure\n", moved)
			}
			return archiveError(err)
		}
		fmt.Printf("Archived %d record(s)\n", moved)
		return nil
	},
}

func archiveError(err error) error {
	var verr *inv.ValidationError
	if errors.As(err, &verr) {
		fmt.Print(report.RenderViolations(verr.Violations))
		return inv.ErrValidationFailed
	}
	return fmt.Errorf("archive failed: %w", err)
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid && op.StartedAt.Valid {
				duration = op.FinishedAt.Time.Sub(op.StartedAt.Time).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Time.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				truncate(op.Parameters, 40),
			)
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)
	configCmd.AddCommand(configEncryptionCmd)
	configEncryptionCmd.AddCommand(configEncryptionInitCmd)

	recordsCmd.AddCommand(recordsImportCmd)
	artifactsCmd.AddCommand(artifactsListCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveEligibleCmd)
	archiveCmd.AddCommand(archivePreviewCmd)
	archiveCmd.AddCommand(archiveCommitCmd)
	archiveCommitCmd.Flags().String("confirm", "", "Token printed by 'archive preview'")
	archiveCommitCmd.MarkFlagRequired("confirm")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().Bool("stats-only", false, "Compute statistics without writing an artifact")
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("out", "o", "", "Also write the report to this file")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
