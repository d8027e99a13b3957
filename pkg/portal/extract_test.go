package portal

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := ParseDocument(html)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

const resultsFixture = `
<html><body>
  <div class="CalendarDay">
    <h3 class="CalendarDayHeader">Monday, March 10, 2025</h3>
    <div class="SlotGroup">
      <a class="AvailableTimeSlot" id="slot-1" href="/p/clinic/appointments/requests/?timeSlot=2025-03-10T09:00&amp;location=250637">9:00 AM</a>
      <a class="AvailableTimeSlot" id="slot-2" href="/p/clinic/appointments/requests/?timeSlot=2025-03-10T10:00&amp;location=250637">10:00 AM</a>
    </div>
  </div>
  <div class="CalendarDay">
    <h3 class="CalendarDayHeader">Tuesday, March 11, 2025</h3>
    <a class="AvailableTimeSlot" href="/p/clinic/appointments/requests/?timeSlot=2025-03-11T14:30&amp;location=172794">2:30 PM</a>
  </div>
  <a id="WeirdTimeSlotLink" href="/other">ignored fallback</a>
</body></html>`

func TestExtractSlotsFirstStrategyWins(t *testing.T) {
	doc := mustParse(t, resultsFixture)
	slots := ExtractSlots(doc, DefaultStrategies())

	// The anchor matching only the fallback strategy must not be merged in.
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	if slots[0].Time != "9:00 AM" || slots[2].Time != "2:30 PM" {
		t.Fatalf("unexpected slot order: %+v", slots)
	}
	for _, s := range slots {
		if s.Time == "ignored fallback" {
			t.Fatal("fallback strategy results merged into primary results")
		}
	}
}

func TestExtractSlotsFallsBackWhenPrimaryEmpty(t *testing.T) {
	html := `<html><body>
	  <a id="MorningTimeSlot" href="/book?timeSlot=2025-03-10T09:00">9:00 AM</a>
	</body></html>`
	slots := ExtractSlots(mustParse(t, html), DefaultStrategies())
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].ElementID != "MorningTimeSlot" {
		t.Fatalf("elementID = %q", slots[0].ElementID)
	}
}

func TestExtractSlotsResolvesDateHeaders(t *testing.T) {
	slots := ExtractSlots(mustParse(t, resultsFixture), DefaultStrategies())
	if slots[0].DateLabel != "Monday, March 10, 2025" {
		t.Fatalf("slot 0 date label = %q", slots[0].DateLabel)
	}
	if slots[2].DateLabel != "Tuesday, March 11, 2025" {
		t.Fatalf("slot 2 date label = %q", slots[2].DateLabel)
	}
}

// A header buried deeper than the bounded ancestor walk yields an empty
// label rather than a wrong one.
func TestDateHeaderWalkIsBounded(t *testing.T) {
	html := `<html><body>
	  <h3 class="CalendarDayHeader">Monday, March 10, 2025</h3>
	  <div><div><div><div><div><div><div>
	    <a class="AvailableTimeSlot" href="/x?timeSlot=2025-03-10T09:00">9:00 AM</a>
	  </div></div></div></div></div></div></div>
	</body></html>`
	slots := ExtractSlots(mustParse(t, html), DefaultStrategies())
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].DateLabel != "" {
		t.Fatalf("date label = %q, want empty", slots[0].DateLabel)
	}
}

func TestExtractSlotsEmptyDocument(t *testing.T) {
	doc := mustParse(t, `<html><body><p>Loading...</p></body></html>`)
	if slots := ExtractSlots(doc, ExtendedStrategies()); slots != nil {
		t.Fatalf("got %d slots from an empty results view", len(slots))
	}
}

func TestHasNoAppointments(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"marker element", `<div class="NoAvailableAppointments"></div>`, true},
		{"body text", `<p>No available appointments for this provider.</p>`, true},
		{"results present", resultsFixture, false},
		{"empty page", `<html><body></body></html>`, false},
	}
	for _, tc := range tests {
		if got := HasNoAppointments(mustParse(t, tc.html)); got != tc.want {
			t.Errorf("%s: HasNoAppointments = %v, want %v", tc.name, got, tc.want)
		}
	}
}
