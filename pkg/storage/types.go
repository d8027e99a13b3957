package storage

// ClinicianRow is a clinician as stored downstream, with an aggregate slot
// count for listings.
type ClinicianRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CleanName      string `json:"cleanName,omitempty"`
	SearchableName string `json:"searchableName,omitempty"`
	Status         string `json:"status,omitempty"`
	SlotCount      int    `json:"slotCount"`
}

// SlotRow is one stored slot. The (clinician, href) pair is the row's
// identity across sync runs.
type SlotRow struct {
	ClinicianID string `json:"clinicianId"`
	Href        string `json:"href"`
	Time        string `json:"time"`
	Date        string `json:"date"`
	ShortDate   string `json:"shortDate,omitempty"`
	IsoDate     string `json:"isoDate,omitempty"`
	LocationID  string `json:"locationId,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status"`
}

// SyncResult summarizes what one dataset sync did.
type SyncResult struct {
	Clinicians int
	Skipped    int
	Inserted   int
	Kept       int
	Deleted    int
}

// Stats aggregates the stored dataset for the stats command and API.
type Stats struct {
	Clinicians int `json:"clinicians"`
	Slots      int `json:"slots"`
	Listed     int `json:"listed"`
	Booked     int `json:"booked"`
	Errored    int `json:"errored"`
	Locations  int `json:"locations"`
}
