package query

import (
	"fmt"
	"regexp"
	"strings"
)

// ctePrefix matches the head of a common table expression.
const ctePrefix = `WITH\s+(?:RECURSIVE\s+)?\w+\s*(?:\([\w\s,]*\)\s*)?AS\s*\(`

var (
	cteStartRe      = regexp.MustCompile(`(?is)^\s*` + ctePrefix)
	deniedKeywordRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|REPLACE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX)\b`)
	deniedTableRe   = regexp.MustCompile(`(?i)\b(postings|sqlite_master|sqlite_schema|sqlite_temp_master)\b`)
	firstWordRe     = regexp.MustCompile(`^\s*([A-Za-z]+)`)
)

// Validate normalizes a candidate query and rejects anything that is not a
// single read-only SELECT over the aggregation views. Keyword checks are
// whole-word and case-insensitive, so a column like created_at passes while
// "drop" anywhere fails.
func Validate(sqlText string) (string, error) {
	q := strings.TrimSpace(sqlText)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))

	if q == "" {
		return "", fmt.Errorf("%w: empty query", ErrRejected)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrRejected)
	}

	m := firstWordRe.FindStringSubmatch(q)
	if m == nil {
		return "", fmt.Errorf("%w: not a SELECT", ErrRejected)
	}
	switch first := strings.ToUpper(m[1]); first {
	case "SELECT":
	case "WITH":
		if !cteStartRe.MatchString(q) {
			return "", fmt.Errorf("%w: WITH without a common table expression", ErrRejected)
		}
	default:
		return "", fmt.Errorf("%w: not a SELECT (starts with %s)", ErrRejected, first)
	}

	if kw := deniedKeywordRe.FindString(q); kw != "" {
		return "", fmt.Errorf("%w: forbidden keyword %s", ErrRejected, strings.ToUpper(kw))
	}
	if tbl := deniedTableRe.FindString(q); tbl != "" {
		return "", fmt.Errorf("%w: table %s is not queryable", ErrRejected, strings.ToLower(tbl))
	}
	return q, nil
}
