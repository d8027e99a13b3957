package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawSlot is one timeslot element as read off the results view, before any
// normalization.
type RawSlot struct {
	Time      string
	Href      string
	DateLabel string
	ElementID string
}

// Strategy is one way of locating timeslot elements in the results DOM.
// Strategies are tried most-specific first and the first one yielding at
// least one match wins; results are never merged across strategies, which
// keeps a loose fallback from duplicating what a specific one already found.
type Strategy struct {
	Name     string
	Selector string
}

// DefaultStrategies is the main pass's cascade: the portal's results-item
// class, then anchors that merely look like timeslots.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "results-item-class", Selector: ".AvailableTimeSlot"},
		{Name: "timeslot-anchors", Selector: `a[class*="TimeSlot"], a[id*="TimeSlot"]`},
	}
}

// ExtendedStrategies is the retry sweep's broader cascade, adding href and
// onclick heuristics for markup the portal occasionally serves.
func ExtendedStrategies() []Strategy {
	return []Strategy{
		{Name: "results-item-class", Selector: ".AvailableTimeSlot"},
		{Name: "timeslot-href", Selector: `a[href*="timeSlot="]`},
		{Name: "timeslot-class", Selector: ".TimeSlot"},
		{Name: "timeslot-id", Selector: `a[id*="TimeSlot"]`},
		{Name: "timeslot-onclick", Selector: `a[onclick*="TimeSlot"]`},
	}
}

// ExtractSlots runs the strategy cascade over a rendered results view. Zero
// matches across every strategy is a valid outcome (the caller records it as
// no_slots_found), not an error.
func ExtractSlots(doc *goquery.Document, strategies []Strategy) []RawSlot {
	for _, strat := range strategies {
		sel := doc.Find(strat.Selector)
		if sel.Length() == 0 {
			continue
		}
		slots := make([]RawSlot, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			slots = append(slots, RawSlot{
				Time:      strings.TrimSpace(s.Text()),
				Href:      s.AttrOr("href", ""),
				DateLabel: dateHeader(s),
				ElementID: s.AttrOr("id", ""),
			})
		})
		return slots
	}
	return nil
}

// dateHeaderDepth bounds the ancestor walk when resolving which calendar day
// a timeslot belongs to.
const dateHeaderDepth = 5

var dateHeaderSelectors = []string{
	".CalendarDayHeader",
	`[class*="day-header"]`,
	"h3",
	"h4",
}

// dateHeader walks up from a timeslot element looking for the enclosing
// day's header. A missing header yields an empty label, never an error; the
// date-formatting stage recovers the real date from the href later.
func dateHeader(s *goquery.Selection) string {
	parent := s.Parent()
	for i := 0; i < dateHeaderDepth && parent.Length() > 0; i++ {
		for _, sel := range dateHeaderSelectors {
			if header := parent.Find(sel).First(); header.Length() > 0 {
				return strings.TrimSpace(header.Text())
			}
		}
		parent = parent.Parent()
	}
	return ""
}

// HasNoAppointments reports whether the results view is showing the portal's
// explicit "nothing available" state, either as its marker element or as
// plain body text.
func HasNoAppointments(doc *goquery.Document) bool {
	if doc.Find(".NoAvailableAppointments").Length() > 0 {
		return true
	}
	return strings.Contains(doc.Text(), "No available appointments")
}

// ParseDocument wraps rendered page HTML for extraction.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
