package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/internal/rollback"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

var (
	rollbackTarget    string
	rollbackStrategy  string
	rollbackForce     bool
	rollbackVerifyCmd string
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the working tree to a verified green state",
	Long: `Rollback resolves a green target (the latest tag by default),
verifies its archive against the stored checksum and embedded metadata, and
restores the tree. The merge strategy (default) produces a new commit and
preserves history; reset moves the branch pointer and requires --force.

When --verify-cmd is given, the command runs against the restored head; on
exit status zero the restored state is archived and tagged green. Without it
the restored head stays untagged until verified out of band. See
docs/ROLLBACK.md.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(runRollback())
	},
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackTarget, "to", rollback.TargetLatest, "green tag to restore, or \"latest\"")
	rollbackCmd.Flags().StringVar(&rollbackStrategy, "strategy", string(rollback.StrategyMerge), "restore strategy: merge or reset")
	rollbackCmd.Flags().BoolVar(&rollbackForce, "force", false, "skip the clean working tree check; required for reset")
	rollbackCmd.Flags().StringVar(&rollbackVerifyCmd, "verify-cmd", "", "shell command run against the restored head; exit 0 records a new green tag")
}

func runRollback() error {
	switch rollback.Strategy(rollbackStrategy) {
	case rollback.StrategyMerge, rollback.StrategyReset:
	default:
		return fmt.Errorf("unknown strategy %q", rollbackStrategy)
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	o := rollback.New(ws.Archives, ws.Tags, ws.Backend, rollback.Options{
		Target:      rollbackTarget,
		Strategy:    rollback.Strategy(rollbackStrategy),
		Force:       rollbackForce,
		IgnorePaths: ignorePathsFor(ws),
	})

	var hook rollback.VerifyHook
	if rollbackVerifyCmd != "" {
		hook = shellVerifyHook(ws.RepoRoot, rollbackVerifyCmd)
	}

	if err := o.Run(hook); err != nil {
		if o.State() == rollback.StateFailed {
			fmt.Fprintf(os.Stderr, "Rollback failed: %s\n", o.FailureReason())
		}
		return err
	}

	if flagJSON {
		out := map[string]string{
			"target":   o.Target().Name,
			"restored": o.RestoredSHA(),
			"state":    string(o.State()),
		}
		if o.NewTag().Name != "" {
			out["new_tag"] = o.NewTag().Name
		}
		return printJSON(out)
	}
	fmt.Printf("Restored %s at %s\n", o.Target().Name, types.ShortSHA(o.RestoredSHA()))
	if o.NewTag().Name != "" {
		fmt.Printf("Recorded %s\n", o.NewTag().Name)
	} else if hook != nil {
		fmt.Println("Verification did not pass; restored head left untagged")
	} else {
		fmt.Println("Restored head left untagged; run record-green after verifying")
	}
	return nil
}

// ignorePathsFor excludes the ledger's own storage from the clean working
// tree check when it lives inside the repository.
func ignorePathsFor(ws *workspace) []string {
	rel, err := filepath.Rel(ws.RepoRoot, ws.StoreDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	return []string{filepath.ToSlash(rel)}
}

// shellVerifyHook runs command through the shell in the repository root with
// GREENLEDGER_SHA set to the restored head. Exit status zero is green.
func shellVerifyHook(repoRoot, command string) rollback.VerifyHook {
	return func(sha string) (bool, error) {
		cmd := exec.Command("/bin/sh", "-c", command)
		cmd.Dir = repoRoot
		cmd.Env = append(os.Environ(), "GREENLEDGER_SHA="+sha)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
}
