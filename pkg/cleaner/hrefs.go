package cleaner

import (
	"regexp"

	"github.com/apptscope/apptscope/pkg/dataset"
)

var locationPattern = regexp.MustCompile(`location=(\d+)`)

// HrefSanitizer is the first pipeline stage. It drops slots that carry no
// usable identity (missing href or the portal's dead "#" placeholder),
// defaults every remaining slot's status to listed, extracts the location ID
// embedded in the href, and rebuilds the derived locations list.
type HrefSanitizer struct{}

func (HrefSanitizer) Name() string { return "href-sanitation" }

func (HrefSanitizer) Apply(ds dataset.Dataset) Stats {
	var stats Stats
	for _, rec := range ds {
		if rec == nil {
			continue
		}
		kept := rec.Slots[:0]
		for _, slot := range rec.Slots {
			if slot == nil || slot.Href == "" || slot.Href == "#" {
				stats.Dropped++
				continue
			}
			if slot.Status == "" {
				slot.Status = dataset.SlotListed
				stats.Changed++
			}
			if slot.LocationID == "" {
				if m := locationPattern.FindStringSubmatch(slot.Href); m != nil {
					slot.LocationID = m[1]
					stats.Changed++
				}
			}
			kept = append(kept, slot)
		}
		if len(kept) == 0 {
			rec.Slots = nil
		} else {
			rec.Slots = kept
		}
		recomputeLocations(rec)
	}
	return stats
}
