package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// postedLayouts are tried in order; the first hit wins.
var postedLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"2 January 2006",
	"02 January 2006",
}

var relativePattern = regexp.MustCompile(`(?i)(\d+)\s*(hour|day|week|month)s?\s+ago`)

// ParsePostedDate parses a posted-date string. Explicit layouts are tried
// first, then relative phrasings ("3 days ago", "yesterday") resolved
// against now, then a permissive fallback parse. Returns nil when nothing
// matches.
func ParsePostedDate(text string, now time.Time) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}

	if t := parseRelative(text, now); t != nil {
		return t
	}

	if t, err := dateparse.ParseAny(text); err == nil {
		return &t
	}
	return nil
}

func parseRelative(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)
	switch lower {
	case "today", "just posted", "posted today":
		t := now
		return &t
	case "yesterday", "posted yesterday":
		t := now.AddDate(0, 0, -1)
		return &t
	}

	m := relativePattern.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var t time.Time
	switch m[2] {
	case "hour":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	}
	return &t
}
