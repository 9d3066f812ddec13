package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

var (
	reportChecker string
	reportLevel   string
	reportMessage string
)

var recordReportCmd = &cobra.Command{
	Use:   "record-report <plan-line-id>",
	Short: "Append a check report for a plan line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(runRecordReport(args[0]))
	},
}

func init() {
	recordReportCmd.Flags().StringVar(&reportChecker, "checker", "", "name of the checker that produced the finding")
	recordReportCmd.Flags().StringVar(&reportLevel, "level", types.LevelInfo, "finding level: info, warning, or error")
	recordReportCmd.Flags().StringVar(&reportMessage, "message", "", "finding message")
	_ = recordReportCmd.MarkFlagRequired("checker")
	_ = recordReportCmd.MarkFlagRequired("message")
}

func runRecordReport(planLineID string) error {
	if !types.ValidLevel(reportLevel) {
		return fmt.Errorf("invalid finding level %q", reportLevel)
	}
	store, err := openReports()
	if err != nil {
		return err
	}
	defer store.Detach()

	report, err := store.Append(planLineID, []types.Finding{{
		Checker: reportChecker,
		Level:   reportLevel,
		Message: reportMessage,
	}})
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(report)
	}
	fmt.Printf("Recorded report %s #%d\n", report.PlanLineID, report.Seq)
	return nil
}
