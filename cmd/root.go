package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apptscope/apptscope/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `                 _
  __ _ _ __  _ __ | |_ ___  ___ ___  _ __   ___
 / _` + "`" + ` | '_ \| '_ \| __/ __|/ __/ _ \| '_ \ / _ \
| (_| | |_) | |_) | |_\__ \ (_| (_) | |_) |  __/
 \__,_| .__/| .__/ \__|___/\___\___/| .__/ \___|
      |_|   |_|                     |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apptscope",
	Short: "Appointment availability scraper for clinician scheduling portals.",
	Long: LOGO + `apptscope harvests clinician appointment availability from a scheduling
portal through a remote automation browser, normalizes the results into a
stable JSON dataset, and syncs them into sqlite for downstream consumers.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.apptscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".apptscope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.apptscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	viper.SetDefault("browser.endpoint", "http://127.0.0.1:9222")
	viper.SetDefault("portal.base_url", "")
	viper.SetDefault("scraper.concurrent_browsers", 2)
	viper.SetDefault("scraper.clinicians_per_batch", 4)
	viper.SetDefault("scraper.clinician_delay_ms", 1200)
	viper.SetDefault("scraper.batch_delay_seconds", 10)
	viper.SetDefault("scraper.sweep_delay_seconds", 5)
	viper.SetDefault("scraper.page_timeout_seconds", 60)
	viper.SetDefault("scraper.navigation_retries", 3)
	viper.SetDefault("scraper.retry_delay_seconds", 5)
	viper.SetDefault("results.dir", "./results")
	viper.SetDefault("results.file", "appointments.json")
	viper.SetDefault("database.path", "apptscope.sqlite")
	viper.SetDefault("debug", false)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
