package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VICTORY_CONFIG_PATH: config file location (default: ~/.config/victory.toml)
//   - VICTORY_HOME: base directory for plans, logs and history (default: ~/.local/share/victory)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"plan_dir":    filepath.Join(baseDir, "plans"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("VICTORY_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "victory.toml"), nil
}

// getBaseDir follows the XDG data layout unless VICTORY_HOME is set.
func getBaseDir() (string, error) {
	if path := os.Getenv("VICTORY_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "victory"), nil
}
