package cmd

import (
	"errors"
	"time"

	"github.com/spf13/viper"

	"github.com/apptscope/apptscope/internal/utils"
	"github.com/apptscope/apptscope/pkg/browser"
	"github.com/apptscope/apptscope/pkg/dataset"
	"github.com/apptscope/apptscope/pkg/portal"
	"github.com/apptscope/apptscope/pkg/scrape"
)

func resultsStore() dataset.Store {
	return dataset.Store{
		Dir:  viper.GetString("results.dir"),
		File: viper.GetString("results.file"),
	}
}

func portalConfig() (portal.Config, error) {
	baseURL := viper.GetString("portal.base_url")
	if baseURL == "" {
		return portal.Config{}, errors.New("portal.base_url is not configured (set it in $HOME/.apptscope.yaml)")
	}
	return portal.Config{
		BaseURL:           baseURL,
		PageTimeout:       time.Duration(viper.GetInt("scraper.page_timeout_seconds")) * time.Second,
		NavigationRetries: viper.GetInt("scraper.navigation_retries"),
		RetryDelay:        time.Duration(viper.GetInt("scraper.retry_delay_seconds")) * time.Second,
	}, nil
}

func scrapeConfig(refresh, debug bool) scrape.Config {
	return scrape.Config{
		BatchSize:      viper.GetInt("scraper.clinicians_per_batch"),
		Concurrency:    viper.GetInt("scraper.concurrent_browsers"),
		ClinicianDelay: time.Duration(viper.GetInt("scraper.clinician_delay_ms")) * time.Millisecond,
		BatchDelay:     time.Duration(viper.GetInt("scraper.batch_delay_seconds")) * time.Second,
		SweepDelay:     time.Duration(viper.GetInt("scraper.sweep_delay_seconds")) * time.Second,
		Refresh:        refresh,
		Debug:          debug || viper.GetBool("debug"),
	}
}

// newRunner wires the full scrape stack: browser session manager, portal
// driver, and batch runner. The returned cleanup tears down pooled sessions.
func newRunner(refresh, debug, extended bool) (*scrape.Runner, func(), error) {
	pcfg, err := portalConfig()
	if err != nil {
		return nil, nil, err
	}
	if extended {
		pcfg = pcfg.Sweep()
	}

	mgr := browser.NewManager(
		viper.GetString("browser.endpoint"),
		viper.GetInt("scraper.concurrent_browsers"),
		pcfg.NavigationRetries,
		pcfg.RetryDelay,
		utils.Log,
	)
	driver := portal.NewDriver(mgr, pcfg, utils.Log)
	runner := scrape.NewRunner(driver, resultsStore(), scrapeConfig(refresh, debug), utils.Log)
	return runner, mgr.CloseAll, nil
}
