package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/internal/paths"
	"github.com/mesh-intelligence/greenledger/internal/reports"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

var reportHistory bool

var reportCmd = &cobra.Command{
	Use:   "report <plan-line-id>",
	Short: "Show the latest check report for a plan line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(runReport(args[0]))
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportHistory, "history", false, "show the full report history, oldest first")
}

// openReports attaches a check report store against the resolved layout. The
// caller detaches it.
func openReports() (*reports.Store, error) {
	repoRoot, err := paths.ResolveRepoRoot(flagRepoRoot)
	if err != nil {
		return nil, err
	}
	storeDir, err := resolveStoreDir(repoRoot)
	if err != nil {
		return nil, err
	}
	store := reports.NewStore()
	if err := store.Attach(types.Config{
		StoreDir: storeDir,
		RepoRoot: repoRoot,
		Branch:   configBranch,
	}); err != nil {
		return nil, err
	}
	return store, nil
}

func runReport(planLineID string) error {
	if !types.ValidPlanLineID(planLineID) {
		return fmt.Errorf("invalid plan line id %q", planLineID)
	}
	store, err := openReports()
	if err != nil {
		return err
	}
	defer store.Detach()

	var history []types.CheckReport
	if reportHistory {
		history, err = store.History(planLineID)
	} else {
		var latest types.CheckReport
		latest, err = store.Latest(planLineID)
		history = []types.CheckReport{latest}
	}
	if err != nil {
		return err
	}

	if flagJSON {
		if reportHistory {
			return printJSON(history)
		}
		return printJSON(history[0])
	}
	for _, r := range history {
		fmt.Printf("%s #%d (%s)\n", r.PlanLineID, r.Seq, r.ProducedAt.Format("2006-01-02 15:04:05 MST"))
		for _, f := range r.Findings {
			fmt.Printf("  [%s] %s: %s\n", f.Level, f.Checker, f.Message)
		}
	}
	return nil
}
