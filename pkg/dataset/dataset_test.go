package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundtrip(t *testing.T) {
	store := Store{Dir: t.TempDir(), File: "appointments.json"}

	ds := Dataset{}
	ds.SetResult("1001", "Jane Smith", "", []*Slot{
		{Href: "/x?timeSlot=2025-03-10T09:00", Time: "9:00 AM", Date: "Mon", Status: SlotListed},
	})
	ds.SetResult("1002", "John Doe", StatusNoAppointments, nil)
	ds.SetError("1003", "Mary Major", errors.New("timeout"))

	if err := store.Save(ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d records, want 3", len(loaded))
	}
	if loaded["1001"].Slots[0].Href != "/x?timeSlot=2025-03-10T09:00" {
		t.Fatalf("slot lost in roundtrip: %+v", loaded["1001"].Slots)
	}
	if loaded["1003"].Status != StatusError || loaded["1003"].ErrorMessage != "timeout" {
		t.Fatalf("error record lost in roundtrip: %+v", loaded["1003"])
	}

	// The clinician-map sidecar rides along with every save.
	if _, err := os.Stat(filepath.Join(store.Dir, "clinician-map.json")); err != nil {
		t.Fatalf("clinician map sidecar missing: %v", err)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := Store{Dir: t.TempDir(), File: "appointments.json"}
	if _, err := store.Load(); !os.IsNotExist(err) {
		t.Fatalf("load of missing file = %v, want a not-exist error", err)
	}
}

func TestStoreSaveLeavesNoTempFile(t *testing.T) {
	store := Store{Dir: t.TempDir(), File: "appointments.json"}
	ds := Dataset{"1001": {Name: "Jane Smith"}}
	if err := store.Save(ds); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(store.Dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSetResultKeepsCleanerFields(t *testing.T) {
	ds := Dataset{"1001": {
		Name:           "Jane Smith, PhD",
		CleanName:      "Jane Smith",
		SearchableName: "janesmith",
		Status:         StatusError,
		ErrorMessage:   "timeout",
	}}
	ds.SetResult("1001", "Jane Smith, PhD", "", []*Slot{{Href: "/x", Status: SlotListed}})

	rec := ds["1001"]
	if rec.CleanName != "Jane Smith" || rec.SearchableName != "janesmith" {
		t.Fatalf("normalization-owned fields clobbered: %+v", rec)
	}
	if rec.Status != "" || rec.ErrorMessage != "" {
		t.Fatalf("error state not cleared on success: %+v", rec)
	}
	if len(rec.Slots) != 1 {
		t.Fatalf("slots not replaced: %+v", rec.Slots)
	}
}

func TestSetErrorKeepsExistingSlots(t *testing.T) {
	ds := Dataset{}
	ds.SetResult("1001", "Jane Smith", "", []*Slot{{Href: "/x", Status: SlotListed}})
	ds.SetError("1001", "Jane Smith", errors.New("portal down"))

	rec := ds["1001"]
	if rec.Status != StatusError {
		t.Fatalf("status = %q", rec.Status)
	}
	if len(rec.Slots) != 1 {
		t.Fatal("previously scraped slots discarded on error")
	}
}

func TestErrorIDsSorted(t *testing.T) {
	ds := Dataset{}
	ds.SetError("9", "", errors.New("x"))
	ds.SetError("10", "", errors.New("x"))
	ds.SetResult("2", "", StatusNoAppointments, nil)

	got := ds.ErrorIDs()
	if len(got) != 2 || got[0] != "10" || got[1] != "9" {
		t.Fatalf("error IDs = %v", got)
	}
}
