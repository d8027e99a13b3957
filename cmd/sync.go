package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apptscope/apptscope/internal/utils"
	"github.com/apptscope/apptscope/pkg/storage"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the normalized dataset into the sqlite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		if dbPath == "" {
			dbPath = viper.GetString("database.path")
		}

		ds, err := resultsStore().Load()
		if err != nil {
			return err
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := db.SyncDataset(cmd.Context(), ds)
		if err != nil {
			return err
		}
		utils.Log.Infof("synced %d clinicians: %d slots inserted, %d kept, %d deleted, %d clinicians skipped",
			res.Clinicians, res.Inserted, res.Kept, res.Deleted, res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("dbpath", "", "Path to the sqlite database (default from config)")
}
