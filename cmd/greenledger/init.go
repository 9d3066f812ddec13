package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/internal/archive"
	"github.com/mesh-intelligence/greenledger/internal/paths"
	"github.com/mesh-intelligence/greenledger/internal/reports"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ledger storage root and configuration directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(runInit())
	},
}

// runInit bootstraps the storage root (archive/ and reports/ subdirectories)
// and seeds a default config.yaml. Re-running against an initialized store is
// a no-op.
func runInit() error {
	repoRoot, err := paths.ResolveRepoRoot(flagRepoRoot)
	if err != nil {
		return err
	}
	storeDir, err := resolveStoreDir(repoRoot)
	if err != nil {
		return err
	}
	configDir, err := resolveConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{
		storeDir,
		filepath.Join(storeDir, archive.DirName),
		filepath.Join(storeDir, reports.DirName),
		configDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := writeDefaultConfig(configDir); err != nil {
		return err
	}

	if flagJSON {
		return printJSON(map[string]string{
			"store_dir":  storeDir,
			"config_dir": configDir,
		})
	}
	fmt.Printf("Initialized ledger store at %s\n", storeDir)
	return nil
}
