package cmd

import (
	"github.com/spf13/cobra"

	"github.com/apptscope/apptscope/internal/utils"
	"github.com/apptscope/apptscope/pkg/cleaner"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the normalization pipeline over the scraped dataset",
	Long: `Run the normalization pipeline over the scraped dataset: href sanitation,
location mapping, name cleaning, date formatting, and the date consistency
repair. The pipeline is idempotent; running it again is always safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cleaner.Run(resultsStore(), utils.Log)
		if err != nil {
			return err
		}
		utils.Log.Infof("normalized %d clinicians, %d slots", len(ds), ds.SlotCount())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
