package cleaner

import (
	"regexp"
	"time"

	"github.com/apptscope/apptscope/pkg/dataset"
)

// timeSlotPattern pulls the authoritative date out of a slot href, e.g.
// "...&timeSlot=2025-03-10T09:00&location=250637".
var timeSlotPattern = regexp.MustCompile(`timeSlot=(\d{4}-\d{2}-\d{2})T`)

const isoLayout = "2006-01-02"

// LongDate renders an ISO date in the portal's long display form,
// e.g. "Monday, March 10, 2025".
func LongDate(isoDate string) (string, error) {
	t, err := time.Parse(isoLayout, isoDate)
	if err != nil {
		return "", err
	}
	return t.Format("Monday, January 2, 2006"), nil
}

// DateFormatter extracts the embedded timestamp from each slot's href, sets
// isoDate, and rewrites the display date to the canonical long form. The
// scraped display label is preserved once in shortDate: shortDate is
// write-once so the original portal rendering survives repeated runs.
type DateFormatter struct{}

func (DateFormatter) Name() string { return "date-formatting" }

func (DateFormatter) Apply(ds dataset.Dataset) Stats {
	var stats Stats
	for _, rec := range ds {
		if rec == nil {
			continue
		}
		for _, slot := range rec.Slots {
			if slot == nil || slot.Href == "" {
				continue
			}
			m := timeSlotPattern.FindStringSubmatch(slot.Href)
			if m == nil {
				stats.Skipped++
				continue
			}
			long, err := LongDate(m[1])
			if err != nil {
				stats.Skipped++
				continue
			}
			// The pre-normalization display label moves to shortDate
			// exactly once, on the slot's first pass through this stage.
			if slot.ShortDate == "" && slot.IsoDate == "" {
				slot.ShortDate = slot.Date
			}
			slot.IsoDate = m[1]
			slot.Date = long
			stats.Changed++
		}
	}
	return stats
}

// DateRepair is the final authority on the display date: for every slot with
// an isoDate it recomputes the long form and overwrites date on disagreement.
// It exists because the formatting stage and manual edits can drift apart.
type DateRepair struct{}

func (DateRepair) Name() string { return "date-consistency" }

func (DateRepair) Apply(ds dataset.Dataset) Stats {
	var stats Stats
	for _, rec := range ds {
		if rec == nil {
			continue
		}
		for _, slot := range rec.Slots {
			if slot == nil || slot.IsoDate == "" {
				continue
			}
			long, err := LongDate(slot.IsoDate)
			if err != nil {
				stats.Skipped++
				continue
			}
			if slot.Date != long {
				slot.Date = long
				stats.Changed++
			}
		}
	}
	return stats
}
