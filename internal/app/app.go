package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"invsnap/internal/config"
	"invsnap/internal/encryption"
	"invsnap/internal/inv"
	"invsnap/internal/report"
	"invsnap/internal/store"
	"invsnap/internal/vault"
)

// ErrKeysNotSetUp is returned when encryption is configured but the key pair
// has not been generated yet.
var ErrKeysNotSetUp = errors.New("encryption keys not set up: run 'invsnap config encryption init'")

// Options tune how an InvApp is built.
type Options struct {
	// Debug lowers the log level to DEBUG.
	Debug bool
}

func (o Options) level() slog.Level {
	if o.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// InvApp is the application layer between the CLI and inv.Service.
// It constructs all dependencies from config, exposes the commands the CLI
// runs, and records mutating commands in the store's operation history.
type InvApp struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	vault     inv.Vault
	encryptor inv.Encryptor
	service   *inv.Service
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File

	// Passphrase is called when an encrypted artifact must be opened.
	Passphrase func() (string, error)
}

// NewInvApp creates a fully wired InvApp from the given config.
// operation identifies the CLI command being run (e.g. "Export", "ArchiveCommit").
// The caller must call Close when done.
func NewInvApp(cfg *config.Config, operation string, opts Options) (*InvApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	st, err := store.NewStoreFromConfig(cfg.Store, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := st.CheckMigrations(); err != nil {
		st.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.level())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := inv.NewService(st, v, enc, &slogAdapter{l: logger}, inv.RealClock{}, inv.UUIDGenerator{}, settingsFromConfig(cfg))

	return &InvApp{
		cfg:       cfg,
		store:     st,
		vault:     v,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation),
		logFile:   logFile,
	}, nil
}

func settingsFromConfig(cfg *config.Config) inv.Settings {
	return inv.Settings{
		Fields: inv.FieldMapping{
			Status:       cfg.Inventory.StatusField,
			Manufacturer: cfg.Inventory.ManufacturerField,
			RetailPrice:  cfg.Inventory.RetailPriceField,
			DateAdded:    cfg.Inventory.DateAddedField,
			LastUpdated:  cfg.Inventory.LastUpdatedField,
		},
		Policy: inv.ArchivePolicy{
			Status:            cfg.Archive.Status,
			ThresholdDays:     cfg.Archive.ThresholdDays,
			MaxBatchBytes:     cfg.Archive.MaxBatchBytes,
			ArchiveCollection: cfg.Archive.Collection,
		},
	}
}

// persistOperation saves the operation to the store, giving it an auto-increment ID.
// This should only be called for store- or vault-mutating commands.
func (a *InvApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	rec, err := a.store.CreateOperation(a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// fail marks the current operation failed and returns err unchanged.
func (a *InvApp) fail(err error) error {
	a.op.Fail()
	return err
}

// Export snapshots the inventory collection into the vault. With statsOnly
// the snapshot is computed but nothing is written and no operation recorded.
func (a *InvApp) Export(statsOnly bool) (*inv.ExportResult, error) {
	collection := a.cfg.Inventory.Collection
	if !statsOnly {
		if a.encryptor != nil && !a.encryptor.IsConfigured() {
			return nil, ErrKeysNotSetUp
		}
		if err := a.persistOperation(collection); err != nil {
			return nil, err
		}
	}
	res, err := a.service.Export(collection, inv.ExportOptions{StatisticsOnly: statsOnly})
	if err != nil {
		return nil, a.fail(err)
	}
	return res, nil
}

// ListArtifacts returns the artifact names stored in the vault.
func (a *InvApp) ListArtifacts() ([]string, error) {
	return a.service.ListArtifacts()
}

// Verify loads an artifact and checks its integrity.
func (a *InvApp) Verify(name string) (*inv.Snapshot, *inv.Verification, error) {
	snapshot, err := a.loadSnapshot(name)
	if err != nil {
		return nil, nil, err
	}
	v, err := inv.Verify(snapshot)
	if err != nil {
		return snapshot, nil, err
	}
	return snapshot, v, nil
}

// Comparison is a reconciliation result together with its rendered report.
type Comparison struct {
	Result *inv.ComparisonResult
	Report string
}

// Compare reconciles an artifact against the live collection and renders the
// report. When outPath is set the report is also written there.
func (a *InvApp) Compare(name, outPath string) (*Comparison, error) {
	snapshot, err := a.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	result, err := a.service.Reconcile(snapshot)
	if err != nil {
		return nil, err
	}

	r := &report.Renderer{
		Lookup:        a.supplierLookup(),
		SummaryFields: []string{a.cfg.Inventory.ManufacturerField, a.cfg.Inventory.StatusField},
	}
	text := r.Render(result)
	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
			return nil, fmt.Errorf("writing report: %w", err)
		}
		a.logger.Info("report written", "path", outPath)
	}
	return &Comparison{Result: result, Report: text}, nil
}

// supplierLookup loads the supplier directory. A failure only degrades the
// report, so it is logged and nil is returned.
func (a *InvApp) supplierLookup() inv.NameLookup {
	dir, err := store.NewSupplierDirectory(a.store, a.cfg.Inventory.SupplierCollection, a.cfg.Inventory.SupplierNameField)
	if err != nil {
		a.logger.Warn("supplier names unavailable", "error", err)
		return nil
	}
	return dir
}

func (a *InvApp) loadSnapshot(name string) (*inv.Snapshot, error) {
	var opener inv.Opener
	if strings.HasSuffix(name, inv.EncryptedSuffix) {
		if a.encryptor == nil {
			return nil, fmt.Errorf("artifact %s is encrypted but encryption is not configured", name)
		}
		if a.Passphrase == nil {
			return nil, fmt.Errorf("artifact %s is encrypted and no passphrase was provided", name)
		}
		passphrase, err := a.Passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		opener, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, err
		}
	}
	return a.service.LoadSnapshot(name, opener)
}

// Eligibility classifies the inventory collection against the archive policy.
func (a *InvApp) Eligibility() (*inv.Classification, error) {
	return a.service.ClassifyCollection(a.cfg.Inventory.Collection)
}

// ArchivePreview plans archiving ids (every eligible record when empty)
// without writing anything. The plan's Token confirms a later commit.
func (a *InvApp) ArchivePreview(ids []string) (*inv.ArchivePlan, error) {
	return a.service.PlanArchive(a.cfg.Inventory.Collection, ids)
}

// ArchiveCommit re-plans ids and moves the records into the archive
// collection if token matches the plan. Returns the number of records moved.
func (a *InvApp) ArchiveCommit(ids []string, token string) (int, error) {
	plan, err := a.service.PlanArchive(a.cfg.Inventory.Collection, ids)
	if err != nil {
		return 0, err
	}
	if token != plan.Token {
		return 0, inv.ErrConfirmationMismatch
	}
	if err := a.persistOperation(strings.Join(ids, " ")); err != nil {
		return 0, err
	}
	moved, err := a.service.CommitArchive(plan, token)
	if err != nil {
		return moved, a.fail(err)
	}
	return moved, nil
}

// History returns the most recent recorded operations.
func (a *InvApp) History(limit int) ([]*store.Operation, error) {
	return a.store.ListOperations(limit)
}

// SetupEncryption generates the artifact key pair.
func (a *InvApp) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled in config (encryption.type = %q)", a.cfg.Encryption.Type)
	}
	return a.encryptor.Setup(passphrase)
}

// ValidateVault checks that the configured vault is reachable.
func (a *InvApp) ValidateVault() error {
	return a.vault.ValidateSetup()
}

// Close finalizes the operation and closes all resources.
func (a *InvApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
