package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Configuration keys recognized in config.yaml.
const (
	cfgKeyStoreDir = "store_dir"
	cfgKeyBranch   = "branch"
)

const configFileName = "config.yaml"

// defaultBranch is used when config.yaml carries no branch key.
const defaultBranch = "main"

// loadConfig reads config.yaml from the configuration directory. A missing
// file is not an error: defaults apply and `greenledger init` seeds one.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetDefault(cfgKeyBranch, defaultBranch)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// writeDefaultConfig seeds a default config.yaml in the configuration
// directory. An existing file is left untouched.
func writeDefaultConfig(configDir string) error {
	path := filepath.Join(configDir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	contents := fmt.Sprintf("%s: %q\n%s: \"\"\n", cfgKeyBranch, defaultBranch, cfgKeyStoreDir)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
