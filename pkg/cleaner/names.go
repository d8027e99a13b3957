package cleaner

import (
	"regexp"
	"strings"

	"github.com/apptscope/apptscope/pkg/dataset"
)

// The suffix patterns require leading whitespace so a bare name ending in a
// credential-looking run of letters ("Lori") is never truncated.
var (
	credentialSuffix   = regexp.MustCompile(`(?i)\s+(PhD|Psy\.D\.|Dr\.|MD|LCSW|LMSW|Psychologist|Counselor|LSW|Therapist|MFT|LPC)$`)
	generationalSuffix = regexp.MustCompile(`(?i)\s+(Jr\.?|Sr\.?|I{1,3}|IV|VI|V)$`)
	remoteSuffix       = regexp.MustCompile(`(?i)\s-\sRemote$`)
	spaceRun           = regexp.MustCompile(`\s+`)
	nonAlphanumeric    = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// CleanName strips titles, credentials, and the "- Remote" marker from a
// scraped display name. Portal names look like "Jane Smith, PhD - Remote" or
// "John Doe LCSW"; the result is just the person's name. The remote marker
// goes before the credential pass so "Jane Smith PhD - Remote" still loses
// both.
func CleanName(name string) string {
	clean := strings.TrimSpace(strings.SplitN(name, ",", 2)[0])
	clean = strings.TrimSpace(remoteSuffix.ReplaceAllString(clean, ""))
	clean = strings.TrimSpace(credentialSuffix.ReplaceAllString(clean, ""))
	clean = strings.TrimSpace(generationalSuffix.ReplaceAllString(clean, ""))
	return spaceRun.ReplaceAllString(clean, " ")
}

// SearchableName reduces a cleaned name to a case-folded alphanumeric key
// suitable for fuzzy lookups from the booking UI.
func SearchableName(cleanName string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(cleanName, ""))
}

// NameCleaner derives cleanName and searchableName for every record. Both
// are recomputed from the raw name each run, so re-cleaning is a no-op
// unless the raw name itself changed.
type NameCleaner struct{}

func (NameCleaner) Name() string { return "name-cleaning" }

func (NameCleaner) Apply(ds dataset.Dataset) Stats {
	var stats Stats
	for _, rec := range ds {
		if rec == nil || rec.Name == "" {
			continue
		}
		clean := CleanName(rec.Name)
		searchable := SearchableName(clean)
		if rec.CleanName != clean || rec.SearchableName != searchable {
			rec.CleanName = clean
			rec.SearchableName = searchable
			stats.Changed++
		}
	}
	return stats
}
