package store

import (
	"context"
	"fmt"
	"regexp"
)

// ViewSpec names one aggregation table and the degree level it holds.
type ViewSpec struct {
	Name        string `yaml:"name" json:"name"`
	DegreeLevel string `yaml:"degree_level" json:"degree_level"`
}

// DefaultViews are the PhD and Masters projections queried by the planner.
var DefaultViews = []ViewSpec{
	{Name: "phd", DegreeLevel: "PhD"},
	{Name: "masters", DegreeLevel: "Masters"},
}

var viewNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// verdictExpr maps the free-text decision label to its verdict by prefix.
const verdictExpr = `CASE
    WHEN decision_label LIKE 'Accepted%' THEN 'Accepted'
    WHEN decision_label LIKE 'Rejected%' THEN 'Rejected'
    WHEN decision_label LIKE 'Interview%' THEN 'Interview'
    WHEN decision_label LIKE 'Wait listed%' OR decision_label LIKE 'Waitlisted%' THEN 'Wait listed'
    ELSE 'Other'
  END`

// RebuildView recomputes one view from the full postings table and swaps it
// in. The swap happens inside a single transaction, so readers see either the
// previous table or the complete new one.
func (d *DB) RebuildView(ctx context.Context, v ViewSpec, yearFloor int) (int, error) {
	if !viewNameRe.MatchString(v.Name) || v.Name == "postings" {
		return 0, fmt.Errorf("rebuild view: invalid name %q", v.Name)
	}
	next := v.Name + "__next"

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, next)); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE %s (
  institution TEXT NOT NULL,
  program TEXT NOT NULL,
  decision_date TEXT NOT NULL,
  gpa REAL,
  quant_score REAL,
  result TEXT NOT NULL
);`, next)); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (institution, program, decision_date, gpa, quant_score, result)
SELECT institution, program, decision_date, gpa, quant_score, %s
FROM postings
WHERE degree_level = ?
  AND decision_date IS NOT NULL
  AND added_date IS NOT NULL
  AND CAST(strftime('%%Y', added_date) AS INTEGER) > ?
ORDER BY id ASC;`, next, verdictExpr), v.DegreeLevel, yearFloor)
	if err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, v.Name)); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s;`, next, v.Name)); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_institution ON %s(institution);`, v.Name, v.Name,
	)); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", v.Name, err)
	}
	return int(n), nil
}

// RebuildViews rebuilds every view in order and returns row counts by name.
// It stops at the first failure; views already rebuilt stay committed.
func (d *DB) RebuildViews(ctx context.Context, views []ViewSpec, yearFloor int) (map[string]int, error) {
	counts := make(map[string]int, len(views))
	for _, v := range views {
		n, err := d.RebuildView(ctx, v, yearFloor)
		if err != nil {
			return counts, err
		}
		counts[v.Name] = n
	}
	return counts, nil
}
