package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for invsnap.
type Config struct {
	InstanceID string           `toml:"instance_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Store      StoreConfig      `toml:"store"`
	Inventory  InventoryConfig  `toml:"inventory"`
	Archive    ArchiveConfig    `toml:"archive"`
}

// EncryptionConfig controls whether snapshot artifacts are sealed at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age", or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for an artifact vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services
	S3KeyID    string `toml:"s3_access_key_id,omitempty"`
	S3Secret   string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// StoreConfig represents configuration for the record store.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// InventoryConfig names the collections and the fields the statistics and
// archive rules read.
type InventoryConfig struct {
	Collection         string `toml:"collection"`
	SupplierCollection string `toml:"supplier_collection"`
	SupplierNameField  string `toml:"supplier_name_field"`
	StatusField        string `toml:"status_field"`
	ManufacturerField  string `toml:"manufacturer_field"`
	RetailPriceField   string `toml:"retail_price_field"`
	DateAddedField     string `toml:"date_added_field"`
	LastUpdatedField   string `toml:"last_updated_field"`
}

// ArchiveConfig holds the archive eligibility policy.
type ArchiveConfig struct {
	Status        string `toml:"status"`
	ThresholdDays int    `toml:"threshold_days"`
	MaxBatchBytes int64  `toml:"max_batch_bytes"`
	Collection    string `toml:"collection"`
}

// NewConfig creates a new Config with the provided values and defaults for
// everything else.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "invsnap.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "invsnap.key"),
		},
		Store: StoreConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Inventory: InventoryConfig{
			Collection:         "inventory",
			SupplierCollection: "suppliers",
			SupplierNameField:  "name",
			StatusField:        "status",
			ManufacturerField:  "manufacturer",
			RetailPriceField:   "retailPrice",
			DateAddedField:     "dateAdded",
			LastUpdatedField:   "lastUpdated",
		},
		Archive: ArchiveConfig{
			Status:        "Sold",
			ThresholdDays: 60,
			MaxBatchBytes: 1024 * 1024,
			Collection:    "archived_inventory",
		},
	}
}

// Validate reports configuration values no component can work with.
func (c *Config) Validate() error {
	if c.Inventory.Collection == "" {
		return fmt.Errorf("inventory.collection must be set")
	}
	if c.Archive.ThresholdDays < 0 {
		return fmt.Errorf("archive.threshold_days must not be negative, got %d", c.Archive.ThresholdDays)
	}
	if c.Archive.MaxBatchBytes <= 0 {
		return fmt.Errorf("archive.max_batch_bytes must be positive, got %d", c.Archive.MaxBatchBytes)
	}
	if c.Archive.Collection == "" || c.Archive.Collection == c.Inventory.Collection {
		return fmt.Errorf("archive.collection must be set and differ from inventory.collection")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Inventory and archive
// settings missing from the document take their NewConfig defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := NewConfig(c.InstanceID, c.BaseDir)
	setDefault(&c.Encryption.Type, d.Encryption.Type)
	setDefault(&c.Inventory.Collection, d.Inventory.Collection)
	setDefault(&c.Inventory.SupplierCollection, d.Inventory.SupplierCollection)
	setDefault(&c.Inventory.SupplierNameField, d.Inventory.SupplierNameField)
	setDefault(&c.Inventory.StatusField, d.Inventory.StatusField)
	setDefault(&c.Inventory.ManufacturerField, d.Inventory.ManufacturerField)
	setDefault(&c.Inventory.RetailPriceField, d.Inventory.RetailPriceField)
	setDefault(&c.Inventory.DateAddedField, d.Inventory.DateAddedField)
	setDefault(&c.Inventory.LastUpdatedField, d.Inventory.LastUpdatedField)
	setDefault(&c.Archive.Status, d.Archive.Status)
	setDefault(&c.Archive.Collection, d.Archive.Collection)
	if c.Archive.ThresholdDays == 0 {
		c.Archive.ThresholdDays = d.Archive.ThresholdDays
	}
	if c.Archive.MaxBatchBytes == 0 {
		c.Archive.MaxBatchBytes = d.Archive.MaxBatchBytes
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
