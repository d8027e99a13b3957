// Package scrape orchestrates availability collection over the full
// clinician roster: batching, bounded concurrency, per-clinician error
// isolation, and a durable checkpoint after every batch.
package scrape

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/apptscope/apptscope/pkg/dataset"
	"github.com/apptscope/apptscope/pkg/portal"
)

// Source is the availability backend. The portal driver implements it; tests
// substitute fakes.
type Source interface {
	Roster(ctx context.Context) ([]portal.Clinician, error)
	Availability(ctx context.Context, c portal.Clinician) (portal.Availability, error)
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Error log sidecars written next to the checkpoint.
const (
	mainErrorLog  = "error-log.txt"
	sweepErrorLog = "error-retry-log.txt"
)

// Config controls batching and pacing. The delays exist to keep the scraper
// polite: the portal throttles aggressively when hit too fast.
type Config struct {
	BatchSize      int
	Concurrency    int
	ClinicianDelay time.Duration
	BatchDelay     time.Duration
	SweepDelay     time.Duration
	Refresh        bool
	Debug          bool
}

// Runner drives one scrape (or sweep) pass against a source and a checkpoint
// store.
type Runner struct {
	source Source
	store  dataset.Store
	cfg    Config
	log    Logger
}

func NewRunner(source Source, store dataset.Store, cfg Config, log Logger) *Runner {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{source: source, store: store, cfg: cfg, log: log}
}

// Run scrapes availability for every clinician on the roster. A roster fetch
// failure is fatal; per-clinician failures only mark that clinician's record
// as errored. Unless Refresh is set, clinicians already present in the
// checkpoint are skipped so an interrupted run resumes where it stopped.
func (r *Runner) Run(ctx context.Context) (dataset.Dataset, error) {
	roster, err := r.source.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch clinician roster: %w", err)
	}
	r.log.Infof("roster holds %d clinicians", len(roster))

	ds := dataset.Dataset{}
	if r.cfg.Refresh {
		if err := r.store.Clear(); err != nil {
			return nil, err
		}
	} else if existing, err := r.store.Load(); err == nil {
		ds = existing
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	var pending []portal.Clinician
	for _, c := range roster {
		if _, done := ds[c.ID]; done {
			continue
		}
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		r.log.Infof("checkpoint already covers the roster, nothing to scrape")
		return ds, nil
	}
	r.log.Infof("scraping %d of %d clinicians (%d resumed from checkpoint)",
		len(pending), len(roster), len(roster)-len(pending))

	batches := partition(pending, r.cfg.BatchSize)
	var mu sync.Mutex
	for i, batch := range batches {
		if i > 0 {
			if err := sleep(ctx, r.cfg.BatchDelay); err != nil {
				return ds, err
			}
		}
		r.log.Infof("batch %d/%d: %d clinicians", i+1, len(batches), len(batch))
		r.runBatch(ctx, batch, ds, &mu)

		// Checkpoint after every batch. A failed save is survivable as long
		// as a later one succeeds, so it only warns.
		if err := r.store.Save(ds); err != nil {
			r.log.Warnf("checkpoint save failed: %v", err)
		}
		if err := ctx.Err(); err != nil {
			return ds, err
		}
	}
	r.log.Infof("scrape complete: %d clinicians, %d slots, %d errors",
		len(ds), ds.SlotCount(), len(ds.ErrorIDs()))
	return ds, nil
}

func (r *Runner) runBatch(ctx context.Context, batch []portal.Clinician, ds dataset.Dataset, mu *sync.Mutex) {
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, c := range batch {
		if i > 0 {
			if sleep(ctx, r.cfg.ClinicianDelay) != nil {
				break
			}
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(c portal.Clinician) {
			defer wg.Done()
			defer func() { <-sem }()
			r.scrapeOne(ctx, c, ds, mu, mainErrorLog)
		}(c)
	}
	wg.Wait()
}

// scrapeOne fetches one clinician's availability and records the outcome.
// It reports whether the clinician ended up in a non-error state.
func (r *Runner) scrapeOne(ctx context.Context, c portal.Clinician, ds dataset.Dataset, mu *sync.Mutex, logFile string) bool {
	av, err := r.source.Availability(ctx, c)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		r.log.Errorf("clinician %s (%s): %v", c.ID, c.Name, err)
		ds.SetError(c.ID, c.Name, err)
		if lerr := r.store.AppendError(logFile, fmt.Sprintf("clinician %s (%s): %v", c.ID, c.Name, err)); lerr != nil {
			r.log.Warnf("error log append failed: %v", lerr)
		}
		return false
	}

	ds.SetResult(c.ID, c.Name, av.Status, av.Slots)
	switch av.Status {
	case "":
		r.log.Infof("clinician %s (%s): %d slots", c.ID, c.Name, len(av.Slots))
	case dataset.StatusNoSlotsFound:
		r.log.Warnf("clinician %s (%s): results rendered but no slots extracted", c.ID, c.Name)
		if r.cfg.Debug && av.RawHTML != "" {
			if derr := r.store.WriteDebugHTML(c.ID, av.RawHTML); derr != nil {
				r.log.Warnf("debug dump failed: %v", derr)
			}
		}
	default:
		r.log.Infof("clinician %s (%s): %s", c.ID, c.Name, av.Status)
	}
	return true
}

func partition(list []portal.Clinician, size int) [][]portal.Clinician {
	var out [][]portal.Clinician
	for len(list) > size {
		out = append(out, list[:size:size])
		list = list[size:]
	}
	if len(list) > 0 {
		out = append(out, list)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
