package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/apptscope/apptscope/pkg/dataset"
	"github.com/apptscope/apptscope/pkg/portal"
)

type fakeSource struct {
	mu     sync.Mutex
	roster []portal.Clinician
	fail   map[string]error
	calls  []string
	// hook runs before each availability fetch, outside the mutex.
	hook func(id string)
}

func (f *fakeSource) Roster(context.Context) ([]portal.Clinician, error) {
	return f.roster, nil
}

func (f *fakeSource) Availability(_ context.Context, c portal.Clinician) (portal.Availability, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c.ID)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(c.ID)
	}
	if err := f.fail[c.ID]; err != nil {
		return portal.Availability{}, err
	}
	return portal.Availability{Slots: []*dataset.Slot{{
		Href:   "/p/clinic/appointments/requests/?clinician=" + c.ID + "&timeSlot=2025-03-10T09:00",
		Time:   "9:00 AM",
		Status: dataset.SlotListed,
	}}}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func clinicians(n int) []portal.Clinician {
	out := make([]portal.Clinician, n)
	for i := range out {
		out[i] = portal.Clinician{ID: fmt.Sprint(i + 1), Name: fmt.Sprintf("Clinician %d", i+1)}
	}
	return out
}

func testStore(t *testing.T) dataset.Store {
	t.Helper()
	return dataset.Store{Dir: t.TempDir(), File: "appointments.json"}
}

func TestRunIsolatesClinicianFailures(t *testing.T) {
	src := &fakeSource{
		roster: clinicians(5),
		fail:   map[string]error{"3": errors.New("form never rendered")},
	}
	store := testStore(t)
	r := NewRunner(src, store, Config{BatchSize: 2, Concurrency: 2}, nil)

	ds, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ds) != 5 {
		t.Fatalf("dataset holds %d records, want 5", len(ds))
	}
	if got := ds.ErrorIDs(); len(got) != 1 || got[0] != "3" {
		t.Fatalf("error IDs = %v, want [3]", got)
	}
	if ds["3"].ErrorMessage == "" {
		t.Fatal("errored record carries no message")
	}
	for _, id := range []string{"1", "2", "4", "5"} {
		if ds[id].Status != "" || len(ds[id].Slots) != 1 {
			t.Fatalf("clinician %s: status=%q slots=%d", id, ds[id].Status, len(ds[id].Slots))
		}
	}
	if _, err := os.Stat(filepath.Join(store.Dir, mainErrorLog)); err != nil {
		t.Fatalf("error log sidecar missing: %v", err)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	store := testStore(t)
	seed := dataset.Dataset{"1": {Name: "Clinician 1", Status: dataset.StatusNoAppointments}}
	if err := store.Save(seed); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{roster: clinicians(3)}
	r := NewRunner(src, store, Config{BatchSize: 4, Concurrency: 1}, nil)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := src.callCount(); n != 2 {
		t.Fatalf("availability fetched %d times, want 2 (clinician 1 resumed)", n)
	}

	src2 := &fakeSource{roster: clinicians(3)}
	r2 := NewRunner(src2, store, Config{BatchSize: 4, Concurrency: 1, Refresh: true}, nil)
	ds, err := r2.Run(context.Background())
	if err != nil {
		t.Fatalf("refresh Run: %v", err)
	}
	if n := src2.callCount(); n != 3 {
		t.Fatalf("refresh fetched %d times, want 3", n)
	}
	if ds["1"].Status == dataset.StatusNoAppointments {
		t.Fatal("refresh kept the stale checkpoint record")
	}
}

// The checkpoint on disk must already cover batch N-1 while batch N is
// being scraped.
func TestRunCheckpointsEveryBatch(t *testing.T) {
	store := testStore(t)
	src := &fakeSource{roster: clinicians(4)}
	var hookErr error
	src.hook = func(id string) {
		if id != "3" || hookErr != nil {
			return
		}
		ds, err := store.Load()
		if err != nil {
			hookErr = fmt.Errorf("no checkpoint while batch 2 in flight: %v", err)
			return
		}
		for _, want := range []string{"1", "2"} {
			if ds[want] == nil {
				hookErr = fmt.Errorf("checkpoint missing clinician %s from batch 1", want)
			}
		}
	}
	r := NewRunner(src, store, Config{BatchSize: 2, Concurrency: 1}, nil)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hookErr != nil {
		t.Fatal(hookErr)
	}
}

func TestSweepRecoversErroredClinicians(t *testing.T) {
	store := testStore(t)
	seed := dataset.Dataset{}
	seed.SetResult("1", "Clinician 1", dataset.StatusNoAppointments, nil)
	seed.SetError("2", "Clinician 2", errors.New("timeout"))
	seed.SetError("3", "Clinician 3", errors.New("timeout"))
	if err := store.Save(seed); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{fail: map[string]error{"3": errors.New("still timing out")}}
	r := NewRunner(src, store, Config{}, nil)
	res, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Retried != 2 || res.Recovered != 1 {
		t.Fatalf("sweep result = %+v, want 2 retried / 1 recovered", res)
	}

	ds, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if ds["1"].Status != dataset.StatusNoAppointments {
		t.Fatalf("healthy record touched by sweep: %+v", ds["1"])
	}
	if ds["2"].Status != "" || len(ds["2"].Slots) != 1 {
		t.Fatalf("recovered record = %+v", ds["2"])
	}
	if ds["3"].Status != dataset.StatusError {
		t.Fatalf("failed retry should stay errored, got %q", ds["3"].Status)
	}
	if n := src.callCount(); n != 2 {
		t.Fatalf("sweep fetched %d clinicians, want the 2 errored ones", n)
	}
}
