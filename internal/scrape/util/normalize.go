package util

import (
	"regexp"
	"strings"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

var degreeRe = regexp.MustCompile(`(.+?)(PhD|Masters|Master|Doctorate)`)

// SplitProgram separates the program name from the degree marker the site
// appends to it ("EconomicsPhD", "Economics Masters").
func SplitProgram(raw string) (program, degree string) {
	raw = CleanText(raw)
	m := degreeRe.FindStringSubmatch(raw)
	if m == nil {
		return raw, ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

// NormalizeDegree maps source degree markers onto the two stored levels.
// Anything else is reported as absent.
func NormalizeDegree(raw string) string {
	switch strings.ToLower(CleanText(raw)) {
	case "phd", "doctorate":
		return "PhD"
	case "masters", "master":
		return "Masters"
	default:
		return ""
	}
}

// NormalizeStatus accepts only the three applicant categories the site uses.
func NormalizeStatus(raw string) string {
	switch s := CleanText(raw); s {
	case "American", "International", "Other":
		return s
	default:
		return ""
	}
}
