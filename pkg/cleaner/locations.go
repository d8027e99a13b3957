package cleaner

import "github.com/apptscope/apptscope/pkg/dataset"

// locationNames maps the portal's numeric location codes to display names.
// The codes only ever appear inside slot hrefs; the portal has no endpoint
// exposing this table, so it is maintained by hand.
var locationNames = map[string]string{
	"250637": "Main Office 1",
	"232862": "Main Office 2",
	"232863": "Main Office 3",
	"232864": "Main Office 4",
	"232865": "Main Office 5",
	"232866": "Main Office 6",
	"172794": "Telehealth",
	"233904": "Hamaspik Residence",
}

// LocationName resolves a portal location code to its display name.
func LocationName(id string) (string, bool) {
	name, ok := locationNames[id]
	return name, ok
}

// LocationMapper extracts the location code from each slot's href, resolves
// it through the static table, and recomputes each record's locations list.
// Unknown codes keep their ID with no name until the table learns them.
type LocationMapper struct{}

func (LocationMapper) Name() string { return "location-extraction" }

func (LocationMapper) Apply(ds dataset.Dataset) Stats {
	var stats Stats
	for _, rec := range ds {
		if rec == nil {
			continue
		}
		for _, slot := range rec.Slots {
			if slot == nil || slot.Href == "" {
				continue
			}
			m := locationPattern.FindStringSubmatch(slot.Href)
			if m == nil {
				stats.Skipped++
				continue
			}
			slot.LocationID = m[1]
			if name, ok := locationNames[m[1]]; ok {
				if slot.Location != name {
					slot.Location = name
					stats.Changed++
				}
			}
		}
		recomputeLocations(rec)
	}
	return stats
}
