package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/internal/archive"
)

var verifyArchiveCmd = &cobra.Command{
	Use:   "verify-archive <revision>",
	Short: "Check a post-commit archive against its checksum and commit metadata",
	Long: `Verify-archive recomputes the stored archive's checksum and compares
the embedded patch block against the metadata the commit message reports. The
exit status reflects the verdict: 0 when the archive is intact, 2 when it is
missing, 3 when it is corrupt or its metadata disagrees with the commit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(runVerifyArchive(args[0]))
	},
}

func runVerifyArchive(rev string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	sha, err := ws.Backend.Resolve(rev)
	if err != nil {
		return err
	}
	reported, err := ws.Backend.ReportedPatchBlock(sha)
	if err != nil {
		return err
	}

	status, verr := ws.Archives.Verify(sha, reported)
	if flagJSON {
		if err := printJSON(map[string]string{
			"sha":    sha,
			"status": string(status),
		}); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s: %s\n", sha, status)
	}
	if status != archive.VerifyOk {
		return verr
	}
	return nil
}
