package cmd

import (
	"github.com/spf13/cobra"

	"github.com/apptscope/apptscope/internal/utils"
)

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-scrape clinicians the last pass left in error state",
	Long: `Re-scrape clinicians the last pass left in error state, with doubled
timeouts, doubled retries, and a broader slot-extraction cascade.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		passes, _ := cmd.Flags().GetInt("passes")
		debug, _ := cmd.Flags().GetBool("debug")

		runner, cleanup, err := newRunner(false, debug, true)
		if err != nil {
			return err
		}
		defer cleanup()

		for pass := 1; pass <= passes; pass++ {
			utils.Log.Infof("retry pass %d/%d", pass, passes)
			res, err := runner.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if res.Retried == 0 {
				break
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
	retryCmd.Flags().Int("passes", 1, "Number of sweep passes over the errored clinicians")
	retryCmd.Flags().Bool("debug", false, "Dump rendered page HTML for clinicians that yielded no slots")
}
