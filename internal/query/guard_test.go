package query

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAccepts(t *testing.T) {
	tests := map[string]string{
		"SELECT COUNT(*) FROM phd;":                       "SELECT COUNT(*) FROM phd",
		"  select institution from masters  ":             "select institution from masters",
		"WITH t AS (SELECT 1 AS x) SELECT x FROM t":       "WITH t AS (SELECT 1 AS x) SELECT x FROM t",
		"SELECT updated_at, created_by FROM phd":          "SELECT updated_at, created_by FROM phd",
		"SELECT deleted, altered_on FROM masters":         "SELECT deleted, altered_on FROM masters",
		"SELECT created_at_label FROM phd":                "SELECT created_at_label FROM phd",
		"SELECT result FROM phd WHERE result LIKE 'Upd%'": "SELECT result FROM phd WHERE result LIKE 'Upd%'",
	}
	for in, want := range tests {
		got, err := Validate(in)
		if err != nil {
			t.Errorf("Validate(%q) err = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Validate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	for _, in := range []string{
		"",
		";",
		"DROP TABLE phd",
		"SELECT 1; DROP TABLE phd",
		"SELECT * FROM phd; SELECT 2",
		"delete from phd",
		"SELECT * FROM phd WHERE 1=1 -- drop later",
		"SELECT * FROM postings",
		"SELECT name FROM sqlite_master",
		"SELECT name FROM SQLITE_SCHEMA",
		"PRAGMA table_info(phd)",
		"SELECT replace(institution, 'U', 'V') FROM phd",
		"ATTACH DATABASE 'x.db' AS x",
		"EXPLAIN SELECT 1",
		"(SELECT 1)",
		"with that",
		"With the data available.",
	} {
		if _, err := Validate(in); !errors.Is(err, ErrRejected) {
			t.Errorf("Validate(%q) err = %v, want ErrRejected", in, err)
		}
	}
}

func TestValidateRejectsWriteKeywordsInsideSelect(t *testing.T) {
	keywords := []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER"}
	for _, kw := range keywords {
		for _, form := range []string{kw, strings.ToLower(kw), strings.ToUpper(kw[:1]) + strings.ToLower(kw[1:])} {
			q := "SELECT x FROM phd WHERE y IN (SELECT 1) AND 'a' = 'a' " + form
			_, err := Validate(q)
			if !errors.Is(err, ErrRejected) {
				t.Errorf("Validate(%q) err = %v, want ErrRejected", q, err)
				continue
			}
			if !strings.Contains(err.Error(), "forbidden keyword "+kw) {
				t.Errorf("Validate(%q) err = %v, want keyword rejection", q, err)
			}
		}
	}
}
