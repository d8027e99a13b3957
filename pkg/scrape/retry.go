package scrape

import (
	"context"
	"sync"

	"github.com/apptscope/apptscope/pkg/portal"
)

// SweepResult summarizes one error-retry pass.
type SweepResult struct {
	Retried   int
	Recovered int
}

// Sweep retries every clinician left in error state by the last pass. The
// sweep is deliberately sequential and slow: clinicians that failed once
// tend to be the ones the portal renders slowest. A successful retry
// overwrites the error record; a failed one leaves it exactly as it was.
// The checkpoint is saved after every clinician so progress survives a
// mid-sweep crash.
func (r *Runner) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	ds, err := r.store.Load()
	if err != nil {
		return res, err
	}
	ids := ds.ErrorIDs()
	if len(ids) == 0 {
		r.log.Infof("no errored clinicians, sweep has nothing to do")
		return res, nil
	}
	r.log.Infof("retry sweep: %d errored clinicians", len(ids))

	var mu sync.Mutex
	for i, id := range ids {
		if i > 0 {
			if err := sleep(ctx, r.cfg.SweepDelay); err != nil {
				return res, err
			}
		}
		c := portal.Clinician{ID: id, Name: ds[id].Name}
		res.Retried++
		if r.scrapeOne(ctx, c, ds, &mu, sweepErrorLog) {
			res.Recovered++
		}
		if err := r.store.Save(ds); err != nil {
			r.log.Warnf("checkpoint save failed: %v", err)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	r.log.Infof("sweep complete: %d retried, %d recovered", res.Retried, res.Recovered)
	return res, nil
}
