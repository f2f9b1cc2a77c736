package normalize

import "strings"

var remoteMarkers = []string{
	"remote", "work from home", "wfh", "anywhere", "telecommute",
	"distributed", "home office", "home-based",
}

// countryTable folds country synonyms to one canonical name. Keys are
// lowercase.
var countryTable = map[string]string{
	"usa":            "United States",
	"u.s.":           "United States",
	"u.s.a.":         "United States",
	"us":             "United States",
	"united states":  "United States",
	"uk":             "United Kingdom",
	"u.k.":           "United Kingdom",
	"united kingdom": "United Kingdom",
	"great britain":  "United Kingdom",
	"deutschland":    "Germany",
	"nederland":      "Netherlands",
	"the netherlands": "Netherlands",
}

// CanonicalLocation cleans a location string and reports whether the
// listing is remote. A location that is nothing but a remote marker
// canonicalizes to "Remote"; a hybrid like "Remote (US)" keeps its text
// with the country folded.
func CanonicalLocation(text string) (string, bool) {
	loc := Clean(text)
	lower := strings.ToLower(loc)

	remote := containsAny(lower, remoteMarkers)
	if remote && isPureRemote(lower) {
		return "Remote", true
	}

	parts := strings.Split(loc, ",")
	for i, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if canonical, ok := countryTable[key]; ok {
			parts[i] = canonical
		} else {
			parts[i] = strings.TrimSpace(p)
		}
	}
	return strings.Join(parts, ", "), remote
}

func isPureRemote(lower string) bool {
	for _, m := range remoteMarkers {
		if lower == m {
			return true
		}
	}
	return false
}
