package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func seedViews(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	rows := []struct {
		id, degree, label string
		decided, added    *time.Time
	}{
		{"1", "PhD", "Accepted on 15 Dec", date(2024, 12, 15), date(2024, 12, 16)},
		{"2", "PhD", "Rejected on 2 Feb", date(2025, 2, 2), date(2025, 2, 3)},
		{"3", "PhD", "Wait listed on 1 Mar", date(2025, 3, 1), date(2025, 3, 1)},
		{"4", "Masters", "Accepted on 4 Apr", date(2025, 4, 4), date(2025, 4, 5)},
		{"5", "PhD", "Accepted on 9 Jan", nil, date(2025, 1, 10)},    // no decision date
		{"6", "PhD", "Accepted on 9 Jan", date(2016, 1, 9), date(2016, 1, 10)}, // below floor
		{"7", "", "Interview on 3 Jan", date(2025, 1, 3), date(2025, 1, 4)},    // no degree
		{"8", "PhD", "Interview via e-mail on 5 Jan", date(2025, 1, 5), date(2025, 1, 6)},
	}
	for _, r := range rows {
		p := samplePosting(r.id, r.added)
		p.DegreeLevel = r.degree
		p.DecisionLabel = r.label
		p.DecisionDate = r.decided
		if err := db.Insert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
}

func dumpView(t *testing.T, db *DB, name string) []string {
	t.Helper()
	rows, err := db.Pool.Query(fmt.Sprintf(
		`SELECT institution, program, decision_date, gpa, quant_score, result FROM %s;`, name))
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var inst, prog, dd, res string
		var gpa, q *float64
		if err := rows.Scan(&inst, &prog, &dd, &gpa, &q, &res); err != nil {
			t.Fatal(err)
		}
		out = append(out, strings.Join([]string{inst, prog, dd, fmt.Sprint(*gpa), fmt.Sprint(*q), res}, "|"))
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRebuildViewFilters(t *testing.T) {
	db, _ := newTestDB(t)
	seedViews(t, db)

	counts, err := db.RebuildViews(context.Background(), DefaultViews, 2017)
	if err != nil {
		t.Fatal(err)
	}
	if counts["phd"] != 4 || counts["masters"] != 1 {
		t.Fatalf("counts = %v, want phd=4 masters=1", counts)
	}

	got := dumpView(t, db, "phd")
	var results []string
	for _, line := range got {
		parts := strings.Split(line, "|")
		results = append(results, parts[2]+" "+parts[5])
	}
	want := []string{
		"2024-12-15 Accepted",
		"2025-02-02 Rejected",
		"2025-03-01 Wait listed",
		"2025-01-05 Interview",
	}
	if !reflect.DeepEqual(results, want) {
		t.Fatalf("phd rows = %v, want %v", results, want)
	}
}

func TestRebuildViewIsIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	seedViews(t, db)
	ctx := context.Background()

	if _, err := db.RebuildView(ctx, DefaultViews[0], 2017); err != nil {
		t.Fatal(err)
	}
	first := dumpView(t, db, "phd")
	if _, err := db.RebuildView(ctx, DefaultViews[0], 2017); err != nil {
		t.Fatal(err)
	}
	second := dumpView(t, db, "phd")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild not idempotent:\n%v\n%v", first, second)
	}
}

func TestRebuildViewReplacesPreviousContents(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	if _, err := db.RebuildView(ctx, DefaultViews[0], 2017); err != nil {
		t.Fatal(err)
	}
	if n := len(dumpView(t, db, "phd")); n != 0 {
		t.Fatalf("empty store produced %d rows", n)
	}

	seedViews(t, db)
	n, err := db.RebuildView(ctx, DefaultViews[0], 2017)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(dumpView(t, db, "phd")); got != n || n != 4 {
		t.Fatalf("rows = %d, reported %d, want 4", got, n)
	}

	var leftovers int
	if err := db.Pool.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE name LIKE '%__next';`,
	).Scan(&leftovers); err != nil {
		t.Fatal(err)
	}
	if leftovers != 0 {
		t.Fatalf("%d staging tables left behind", leftovers)
	}
}

func TestRebuildViewRejectsBadName(t *testing.T) {
	db, _ := newTestDB(t)
	for _, name := range []string{"postings", "phd; DROP TABLE postings", ""} {
		if _, err := db.RebuildView(context.Background(), ViewSpec{Name: name, DegreeLevel: "PhD"}, 2017); err == nil {
			t.Errorf("RebuildView(%q) succeeded", name)
		}
	}
}
