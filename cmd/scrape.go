package cmd

import (
	"github.com/spf13/cobra"

	"github.com/apptscope/apptscope/internal/utils"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape appointment availability for every clinician on the portal roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		debug, _ := cmd.Flags().GetBool("debug")

		runner, cleanup, err := newRunner(refresh, debug, false)
		if err != nil {
			return err
		}
		defer cleanup()

		ds, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		utils.Log.Infof("checkpoint written to %s (%d clinicians, %d slots)",
			resultsStore().Path(), len(ds), ds.SlotCount())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().Bool("refresh", false, "Discard the existing checkpoint and scrape the full roster again")
	scrapeCmd.Flags().Bool("debug", false, "Dump rendered page HTML for clinicians that yielded no slots")
}
