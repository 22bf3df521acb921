package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the application paths used when no config says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - INVSNAP_CONFIG_PATH: config file location (default: ~/.config/invsnap.toml)
//   - INVSNAP_HOME: base directory for invsnap data (default: ~/.local/share/invsnap)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome("INVSNAP_CONFIG_PATH", ".config", "invsnap.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome("INVSNAP_HOME", ".local", "share", "invsnap")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env when set, otherwise the path elems
// joined under the user's home directory.
func fromEnvOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
