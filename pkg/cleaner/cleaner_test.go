package cleaner

import (
	"encoding/json"
	"testing"

	"github.com/apptscope/apptscope/pkg/dataset"
)

func sampleDataset() dataset.Dataset {
	return dataset.Dataset{
		"1001": {
			Name: "Jane Smith, PhD - Remote",
			Slots: dataset.SlotList{
				{Href: "/p/clinic/appointments/requests/?clinician=1001&timeSlot=2025-03-10T09:00&location=250637", Time: "9:00 AM", Date: "bad"},
				{Href: "#", Time: "10:00 AM", Date: "Mon 3/10"},
				{Href: "", Time: "11:00 AM", Date: "Mon 3/10"},
				{Href: "/p/clinic/appointments/requests/?clinician=1001&timeSlot=2025-03-11T14:30&location=172794", Time: "2:30 PM", Date: "Tue 3/11", Status: dataset.SlotBooked},
			},
		},
		"1002": {
			Name:   "John Doe LCSW",
			Status: dataset.StatusNoAppointments,
		},
		"1003": {
			Name:         "Mary Major, LMSW",
			Status:       dataset.StatusError,
			ErrorMessage: "navigation failed",
		},
	}
}

func runAll(ds dataset.Dataset) {
	for _, stage := range Stages() {
		stage.Apply(ds)
	}
}

func TestHrefSanitizerDropsInvalidSlots(t *testing.T) {
	ds := sampleDataset()
	HrefSanitizer{}.Apply(ds)

	slots := ds["1001"].Slots
	if len(slots) != 2 {
		t.Fatalf("expected 2 surviving slots, got %d", len(slots))
	}
	for _, slot := range slots {
		if slot.Href == "" || slot.Href == "#" {
			t.Fatalf("invalid href survived sanitation: %q", slot.Href)
		}
		if slot.Status == "" {
			t.Fatalf("slot left without a status")
		}
	}
}

func TestLocationMapperResolvesStaticTable(t *testing.T) {
	ds := sampleDataset()
	HrefSanitizer{}.Apply(ds)
	LocationMapper{}.Apply(ds)

	slots := ds["1001"].Slots
	if slots[0].LocationID != "250637" || slots[0].Location != "Main Office 1" {
		t.Fatalf("slot 0 location = (%q, %q)", slots[0].LocationID, slots[0].Location)
	}
	if slots[1].LocationID != "172794" || slots[1].Location != "Telehealth" {
		t.Fatalf("slot 1 location = (%q, %q)", slots[1].LocationID, slots[1].Location)
	}
}

// Derived-field purity: locations must always equal the distinct
// (locationId, location) pairs over the record's current slots.
func TestLocationsAreDerivedFromSlots(t *testing.T) {
	ds := sampleDataset()
	runAll(ds)

	for id, rec := range ds {
		want := map[string]string{}
		for _, slot := range rec.Slots {
			if slot.LocationID != "" && slot.Location != "" {
				want[slot.LocationID] = slot.Location
			}
		}
		if len(rec.Locations) != len(want) {
			t.Fatalf("clinician %s: %d locations, want %d", id, len(rec.Locations), len(want))
		}
		for _, loc := range rec.Locations {
			if want[loc.ID] != loc.Name {
				t.Fatalf("clinician %s: unexpected location %+v", id, loc)
			}
		}
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, clean, searchable string
	}{
		{"Jane Smith, PhD - Remote", "Jane Smith", "janesmith"},
		{"John Doe LCSW", "John Doe", "johndoe"},
		{"Mary   Major,  LMSW, CCTP", "Mary Major", "marymajor"},
		{"Robert Roe Jr.", "Robert Roe", "robertroe"},
		{"Anna O'Brien-Lee, Psy.D.", "Anna O'Brien-Lee", "annaobrienlee"},
		{"Sam Stone - Remote", "Sam Stone", "samstone"},
		{"Jane Smith PhD - Remote", "Jane Smith", "janesmith"},
		{"Henry Ford III", "Henry Ford", "henryford"},
		{"Lori Macaroni", "Lori Macaroni", "lorimacaroni"},
		{"Plain Name", "Plain Name", "plainname"},
	}
	for _, tc := range tests {
		clean := CleanName(tc.in)
		if clean != tc.clean {
			t.Errorf("CleanName(%q) = %q, want %q", tc.in, clean, tc.clean)
		}
		if got := SearchableName(clean); got != tc.searchable {
			t.Errorf("SearchableName(%q) = %q, want %q", clean, got, tc.searchable)
		}
	}
}

func TestDateFormatterScenario(t *testing.T) {
	ds := sampleDataset()
	HrefSanitizer{}.Apply(ds)
	DateFormatter{}.Apply(ds)

	slot := ds["1001"].Slots[0]
	if slot.IsoDate != "2025-03-10" {
		t.Fatalf("isoDate = %q", slot.IsoDate)
	}
	if slot.Date != "Monday, March 10, 2025" {
		t.Fatalf("date = %q", slot.Date)
	}
	if slot.ShortDate != "bad" {
		t.Fatalf("shortDate = %q, want the pre-normalization value", slot.ShortDate)
	}
}

// Write-once shortDate: a second formatting pass must not touch it.
func TestShortDateIsWriteOnce(t *testing.T) {
	ds := sampleDataset()
	HrefSanitizer{}.Apply(ds)
	DateFormatter{}.Apply(ds)
	before := ds["1001"].Slots[0].ShortDate

	DateFormatter{}.Apply(ds)
	if got := ds["1001"].Slots[0].ShortDate; got != before {
		t.Fatalf("shortDate changed on second run: %q -> %q", before, got)
	}
}

// Date derivation: after the repair stage, date == LongDate(isoDate) for
// every slot carrying an isoDate, no matter what date held before.
func TestDateRepairIsFinalAuthority(t *testing.T) {
	ds := sampleDataset()
	runAll(ds)

	// Simulate drift from a manual edit.
	ds["1001"].Slots[0].Date = "Friday, March 14, 2025"
	DateRepair{}.Apply(ds)

	for _, slot := range ds["1001"].Slots {
		if slot.IsoDate == "" {
			continue
		}
		want, err := LongDate(slot.IsoDate)
		if err != nil {
			t.Fatalf("LongDate(%q): %v", slot.IsoDate, err)
		}
		if slot.Date != want {
			t.Fatalf("date = %q, want %q", slot.Date, want)
		}
	}
}

func TestBookedStatusNeverRegresses(t *testing.T) {
	ds := sampleDataset()
	runAll(ds)
	runAll(ds)

	var booked *dataset.Slot
	for _, slot := range ds["1001"].Slots {
		if slot.Time == "2:30 PM" {
			booked = slot
		}
	}
	if booked == nil {
		t.Fatal("booked slot disappeared")
	}
	if booked.Status != dataset.SlotBooked {
		t.Fatalf("booked slot regressed to %q", booked.Status)
	}
}

// Idempotence: running the full pipeline twice produces a byte-identical
// document the second time.
func TestPipelineIsIdempotent(t *testing.T) {
	ds := sampleDataset()
	runAll(ds)
	first, err := json.Marshal(ds)
	if err != nil {
		t.Fatal(err)
	}

	runAll(ds)
	second, err := json.Marshal(ds)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Fatalf("pipeline not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestErrorRecordsPassThroughUntouched(t *testing.T) {
	ds := sampleDataset()
	runAll(ds)

	rec := ds["1003"]
	if rec.Status != dataset.StatusError || rec.ErrorMessage != "navigation failed" {
		t.Fatalf("error record modified: %+v", rec)
	}
	if rec.CleanName != "Mary Major" {
		t.Fatalf("error records still get name cleaning, got %q", rec.CleanName)
	}
}

func TestSlotListCoercesSingleObject(t *testing.T) {
	raw := `{"name": "Jane Smith", "slots": {"href": "/x?timeSlot=2025-03-10T09:00&location=250637", "time": "9:00 AM", "date": "Mon", "status": "listed"}}`
	var rec dataset.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.Slots) != 1 || rec.Slots[0].Time != "9:00 AM" {
		t.Fatalf("coercion failed: %+v", rec.Slots)
	}
}
