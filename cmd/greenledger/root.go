// Root command for the greenledger CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/internal/paths"
	"github.com/mesh-intelligence/greenledger/pkg/greenledger"
)

// Exit codes for the CLI surface: 0 success, 1 usage error, 2 precondition
// failure (missing archive or target), 3 integrity failure (corrupt archive
// or drift), 4 lock contention.
const (
	exitSuccess      = 0
	exitUserError    = 1
	exitPrecondition = 2
	exitIntegrity    = 3
	exitLocked       = 4
)

// Global flag values.
var (
	flagRepoRoot  string
	flagStoreDir  string
	flagConfigDir string
	flagJSON      bool
)

// Config values loaded from config.yaml by PersistentPreRunE.
var (
	configStoreDir string
	configBranch   string
)

var rootCmd = &cobra.Command{
	Use:     "greenledger",
	Short:   "Greenledger records, verifies, and restores green project states",
	Version: greenledger.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		configStoreDir = cfg.GetString(cfgKeyStoreDir)
		configBranch = cfg.GetString(cfgKeyBranch)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRepoRoot, "repo", "", "git repository root (default: $(CWD))")
	rootCmd.PersistentFlags().StringVar(&flagStoreDir, "store-dir", "", "ledger storage root (default: <repo>/.greenledger)")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.greenledger.d)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(recordGreenCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(verifyArchiveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(recordReportCmd)
}

// resolveConfigDir returns the configuration directory following the
// precedence chain: --config-dir flag > GREENLEDGER_CONFIG_DIR env > default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

// resolveStoreDir returns the storage root following the precedence chain:
// --store-dir flag > config.yaml store_dir > GREENLEDGER_STORE_DIR env >
// <repo>/.greenledger.
func resolveStoreDir(repoRoot string) (string, error) {
	return paths.ResolveStoreDir(flagStoreDir, configStoreDir, repoRoot)
}
