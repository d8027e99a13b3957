package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apptscope/apptscope/internal/utils"
	"github.com/apptscope/apptscope/pkg/cleaner"
	"github.com/apptscope/apptscope/pkg/storage"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scrape, retry sweeps, clean, sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		debug, _ := cmd.Flags().GetBool("debug")
		sweeps, _ := cmd.Flags().GetInt("sweeps")

		runner, cleanup, err := newRunner(refresh, debug, false)
		if err != nil {
			return err
		}
		if _, err := runner.Run(cmd.Context()); err != nil {
			cleanup()
			return err
		}
		cleanup()

		if sweeps > 0 {
			sweeper, sweepCleanup, err := newRunner(false, debug, true)
			if err != nil {
				return err
			}
			for pass := 1; pass <= sweeps; pass++ {
				utils.Log.Infof("retry pass %d/%d", pass, sweeps)
				res, err := sweeper.Sweep(cmd.Context())
				if err != nil {
					sweepCleanup()
					return err
				}
				if res.Retried == 0 {
					break
				}
			}
			sweepCleanup()
		}

		ds, err := cleaner.Run(resultsStore(), utils.Log)
		if err != nil {
			return err
		}

		db, err := storage.Open(viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer db.Close()
		res, err := db.SyncDataset(cmd.Context(), ds)
		if err != nil {
			return err
		}
		utils.Log.Infof("pipeline complete: %d clinicians synced, %d slots inserted, %d kept, %d deleted",
			res.Clinicians, res.Inserted, res.Kept, res.Deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("refresh", false, "Discard the existing checkpoint and scrape the full roster again")
	runCmd.Flags().Bool("debug", false, "Dump rendered page HTML for clinicians that yielded no slots")
	runCmd.Flags().Int("sweeps", 3, "Number of error-retry sweeps after the main pass")
}
