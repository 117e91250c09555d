package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var addedLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
}

// ParseAddedDate reads the listing's "date added" cell. ok is false when no
// known layout matches.
func ParseAddedDate(raw string) (time.Time, bool) {
	raw = CleanText(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range addedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var decisionFragRe = regexp.MustCompile(`(?i)\bon\s+(\d{1,2})\s+([A-Za-z]{3,9})\b`)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ResolveDecisionDate turns a label such as "Accepted on 15 Dec" into a full
// date. The year comes from added; when the label month falls later in the
// calendar than added's month the decision belongs to the previous year.
// Impossible days (31 Feb) resolve to nothing.
func ResolveDecisionDate(label string, added time.Time) (time.Time, bool) {
	if added.IsZero() {
		return time.Time{}, false
	}
	m := decisionFragRe.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 {
		return time.Time{}, false
	}
	name := strings.ToLower(m[2])
	if len(name) < 3 {
		return time.Time{}, false
	}
	month, ok := months[name[:3]]
	if !ok {
		return time.Time{}, false
	}

	year := added.Year()
	if month > added.Month() {
		year--
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
