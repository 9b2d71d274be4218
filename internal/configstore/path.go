package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "config.toml"
	configDirName  = "wwt-aligner"

	// HomeEnv overrides the configuration directory outright.
	HomeEnv = "WWT_ALIGNER_HOME"
)

// GetConfigPath resolves the configuration directory and file path:
// $WWT_ALIGNER_HOME, then $XDG_CONFIG_HOME/wwt-aligner, then
// ~/.config/wwt-aligner.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv(HomeEnv)); override != "" {
		dir, err := filepath.Abs(filepath.Clean(override))
		if err != nil {
			return "", "", fmt.Errorf("resolve %s %q: %w", HomeEnv, override, err)
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		dir := filepath.Join(base, configDirName)
		return dir, filepath.Join(dir, configFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		if err == nil {
			err = fmt.Errorf("home directory not found")
		}
		return "", "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", configDirName)
	return dir, filepath.Join(dir, configFileName), nil
}
