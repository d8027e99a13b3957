package dataset

import (
	"encoding/json"
	"sort"
)

// Clinician record statuses. A record with no status has a populated slots
// list ("ok" is implicit).
const (
	StatusNoAppointments = "no_appointments"
	StatusNoSlotsFound   = "no_slots_found"
	StatusError          = "error"
)

// Slot statuses. "booked" is terminal: only the booking side sets it and
// nothing in the pipeline may revert it to "listed".
const (
	SlotListed = "listed"
	SlotBooked = "booked"
	SlotError  = "error"
)

// Slot is one bookable appointment opportunity. The href is its identity:
// two slots with the same href are the same opportunity across scrape passes.
type Slot struct {
	Href       string `json:"href"`
	Time       string `json:"time"`
	Date       string `json:"date"`
	ShortDate  string `json:"shortDate,omitempty"`
	IsoDate    string `json:"isoDate,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	Location   string `json:"location,omitempty"`
	Status     string `json:"status"`
}

// Location is a distinct (id, name) pair derived from a record's slots.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SlotList tolerates checkpoints produced by older scraper runs where a
// single slot was written as a bare object instead of an array.
type SlotList []*Slot

func (l *SlotList) UnmarshalJSON(data []byte) error {
	var slots []*Slot
	if err := json.Unmarshal(data, &slots); err == nil {
		*l = slots
		return nil
	}
	var single Slot
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = SlotList{&single}
	return nil
}

// Record holds everything scraped for one clinician, keyed in the dataset by
// the portal-assigned clinician ID.
type Record struct {
	Name           string     `json:"name"`
	CleanName      string     `json:"cleanName,omitempty"`
	SearchableName string     `json:"searchableName,omitempty"`
	Status         string     `json:"status,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	Slots          SlotList   `json:"slots,omitempty"`
	Locations      []Location `json:"locations,omitempty"`
}

// Dataset is the pipeline's primary artifact: clinician ID -> record.
type Dataset map[string]*Record

// IDs returns all clinician IDs in sorted order.
func (d Dataset) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrorIDs returns the clinicians left in error state, sorted. These are the
// retry sweep's targets.
func (d Dataset) ErrorIDs() []string {
	var ids []string
	for id, rec := range d {
		if rec != nil && rec.Status == StatusError {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetResult overwrites the scrape-owned fields of a clinician's record while
// keeping fields owned by the normalization pipeline (cleanName and friends).
// A record is never removed once created.
func (d Dataset) SetResult(id, name, status string, slots []*Slot) {
	rec := d[id]
	if rec == nil {
		rec = &Record{}
		d[id] = rec
	}
	if name != "" {
		rec.Name = name
	}
	rec.Status = status
	rec.ErrorMessage = ""
	if status == "" {
		rec.Slots = slots
	}
}

// SetError records a per-clinician failure without touching any previously
// scraped slots.
func (d Dataset) SetError(id, name string, err error) {
	rec := d[id]
	if rec == nil {
		rec = &Record{}
		d[id] = rec
	}
	if name != "" {
		rec.Name = name
	}
	rec.Status = StatusError
	rec.ErrorMessage = err.Error()
}

// SlotCount returns the total number of slots across all records.
func (d Dataset) SlotCount() int {
	n := 0
	for _, rec := range d {
		if rec != nil {
			n += len(rec.Slots)
		}
	}
	return n
}
