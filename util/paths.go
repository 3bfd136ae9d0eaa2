package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppConfigDir = ".config/grayling"
)

// GetConfigDir returns the grayling config directory path (~/.config/grayling/)
// and creates it if it doesn't exist
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, AppConfigDir)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ResolveFilePath resolves a file path with the following priority:
// 1. Local working directory (e.g., ./grayling.db)
// 2. User config directory (e.g., ~/.config/grayling/grayling.db)
// 3. Returns the user config directory path if neither exists (for creation)
func ResolveFilePath(filename string) string {
	if _, err := os.Stat(filename); err == nil {
		return filename
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return filename
	}

	userPath := filepath.Join(configDir, filename)

	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}

	return userPath
}

// ResolveFilePathWithSubdir resolves a file path in a subdirectory, with the
// same local-first priority as ResolveFilePath.
func ResolveFilePathWithSubdir(subdir, filename string) string {
	localPath := filepath.Join(subdir, filename)

	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return localPath
	}

	userSubdir := filepath.Join(configDir, subdir)
	userPath := filepath.Join(userSubdir, filename)

	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}

	os.MkdirAll(userSubdir, 0755)
	return userPath
}
