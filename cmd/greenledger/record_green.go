package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

var recordGreenCmd = &cobra.Command{
	Use:   "record-green [revision]",
	Short: "Archive a commit's tree and record it as a green state",
	Long: `Record-green archives the post-commit tree of a revision (HEAD by
default), verifies the archive round-trips, and appends a green tag to the
ledger. The commit message must conform to the convention described in
docs/COMMITS.md; its patch block becomes the archive's embedded metadata.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rev := "HEAD"
		if len(args) == 1 {
			rev = args[0]
		}
		exitWith(runRecordGreen(rev))
	},
}

func runRecordGreen(rev string) error {
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
	tree, err := ws.Backend.TreeSnapshot(sha)
	if err != nil {
		return err
	}

	arch, err := ws.Archives.Create(sha, tree, reported)
	if err != nil {
		return err
	}

	name := types.TagName(time.Now().UTC(), sha)
	tag, err := ws.Tags.Record(name, sha, reported)
	if err != nil {
		return err
	}

	// The git tag is a convenience pointer; the ledger index is
	// authoritative. A pre-existing tag of the same name is a warning, not
	// a failure.
	if err := ws.Backend.CreateTag(name, sha, "green: "+reported.PatchID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: git tag not created: %v\n", err)
	}

	if flagJSON {
		return printJSON(map[string]string{
			"tag":      tag.Name,
			"sha":      tag.SHA,
			"archive":  arch.Path,
			"checksum": arch.Checksum,
			"patch_id": reported.PatchID,
		})
	}
	fmt.Printf("Recorded %s at %s (archive %s)\n", tag.Name, types.ShortSHA(sha), arch.Checksum[:12])
	return nil
}
