package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apptscope/apptscope/internal/server"
	"github.com/apptscope/apptscope/pkg/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the synced dataset over a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		dbPath, _ := cmd.Flags().GetString("dbpath")
		if dbPath == "" {
			dbPath = viper.GetString("database.path")
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		srv := server.New(db, viper.GetString("server.username"), viper.GetString("server.password"))
		return srv.Start(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("dbpath", "", "Path to the sqlite database (default from config)")
}
