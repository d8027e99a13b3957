package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apptscope/apptscope/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the clinicians and slots in the database.",
	Long:  "Prints statistics about the clinicians and slots in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		if dbPath == "" {
			dbPath = viper.GetString("database.path")
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("database file not found: %s", dbPath)
			}
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		if stats.Clinicians == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "CLINICIANS\tSLOTS\tLISTED\tBOOKED\tERRORED\tLOCATIONS\t")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t\n",
			stats.Clinicians, stats.Slots, stats.Listed, stats.Booked, stats.Errored, stats.Locations)
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("dbpath", "", "Path to the sqlite database (default from config)")
}
