// Package cleaner implements the post-scrape normalization pipeline: a fixed
// sequence of idempotent passes over the accumulated appointments dataset.
// Each stage owns a narrow set of fields and must tolerate input that a
// previous run already processed.
package cleaner

import (
	"github.com/apptscope/apptscope/pkg/dataset"
)

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

// Stats summarizes what a stage did to the dataset.
type Stats struct {
	Changed int // fields set or rewritten
	Dropped int // slots removed
	Skipped int // slots the stage could not process (bad href, bad date)
}

// Stage is one normalization pass. Apply mutates the dataset in place and
// must be idempotent: applying twice equals applying once.
type Stage interface {
	Name() string
	Apply(ds dataset.Dataset) Stats
}

// Stages returns the pipeline in its fixed execution order. Order matters:
// href sanitation must run before location extraction, and the consistency
// repair is the final authority on the display date.
func Stages() []Stage {
	return []Stage{
		HrefSanitizer{},
		LocationMapper{},
		NameCleaner{},
		DateFormatter{},
		DateRepair{},
	}
}

// Run applies every stage in order against the store's current checkpoint,
// persisting after each stage so a crash between stages loses nothing.
func Run(store dataset.Store, log Logger) (dataset.Dataset, error) {
	if log == nil {
		log = nopLogger{}
	}
	ds, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, stage := range Stages() {
		stats := stage.Apply(ds)
		log.Infof("cleaner stage %s: %d changed, %d dropped, %d skipped",
			stage.Name(), stats.Changed, stats.Dropped, stats.Skipped)
		if err := store.Save(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// recomputeLocations rebuilds a record's locations list as the distinct
// (locationId, location) pairs over its current slots, preserving first-seen
// order. Locations is always a pure function of slots.
func recomputeLocations(rec *dataset.Record) {
	seen := make(map[string]bool)
	locations := []dataset.Location{}
	for _, slot := range rec.Slots {
		if slot == nil || slot.LocationID == "" || slot.Location == "" {
			continue
		}
		if seen[slot.LocationID] {
			continue
		}
		seen[slot.LocationID] = true
		locations = append(locations, dataset.Location{ID: slot.LocationID, Name: slot.Location})
	}
	if len(locations) == 0 {
		rec.Locations = nil
		return
	}
	rec.Locations = locations
}
