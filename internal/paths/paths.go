// Package paths resolves the ledger's configuration and storage directories.
// Each resolver follows the same precedence chain: explicit flag, then
// config.yaml value, then environment variable, then the repo-relative
// default.
package paths

import (
	"os"
	"path/filepath"
)

// Repo-relative directory names.
const (
	DefaultStoreDirName  = ".greenledger"
	DefaultConfigDirName = ".greenledger.d"
)

// Environment variable names for directory overrides.
const (
	EnvStoreDir  = "GREENLEDGER_STORE_DIR"
	EnvConfigDir = "GREENLEDGER_CONFIG_DIR"
)

// ResolveStoreDir returns the ledger storage root following the precedence
// chain: flag > config.yaml store_dir > GREENLEDGER_STORE_DIR env >
// <repoRoot>/.greenledger.
func ResolveStoreDir(flag, configValue, repoRoot string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvStoreDir); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Abs(filepath.Join(repoRoot, DefaultStoreDirName))
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > GREENLEDGER_CONFIG_DIR env > $(CWD)/.greenledger.d.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveRepoRoot returns the backend repository root: flag if given,
// otherwise the current working directory.
func ResolveRepoRoot(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	return os.Getwd()
}
