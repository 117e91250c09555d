package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gradwatch-engine/internal/domain"
)

func newTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(db.Pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db, path
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func f64(v float64) *float64 { return &v }

func samplePosting(id string, added *time.Time) domain.Posting {
	return domain.Posting{
		ExternalID:    id,
		Institution:   "Stanford University",
		Program:       "Economics",
		DegreeLevel:   "PhD",
		DecisionLabel: "Accepted on 15 Dec",
		DecisionDate:  date(2024, time.December, 15),
		AddedDateRaw:  "December 16, 2024",
		AddedDate:     added,
		GPA:           f64(3.9),
		QuantScore:    f64(168),
	}
}

func TestInsertTwiceConflicts(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	p := samplePosting("987590", date(2024, time.December, 16))
	if err := db.Insert(ctx, p); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	p.Institution = "Somewhere Else"
	err := db.Insert(ctx, p)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second insert err = %v, want ErrConflict", err)
	}

	n, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	got, err := db.Get(ctx, "987590")
	if err != nil {
		t.Fatal(err)
	}
	if got.Institution != "Stanford University" {
		t.Errorf("stored row was updated: institution = %q", got.Institution)
	}
}

func TestExists(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	ok, err := db.Exists(ctx, "1")
	if err != nil || ok {
		t.Fatalf("Exists before insert = %v, %v", ok, err)
	}
	if err := db.Insert(ctx, samplePosting("1", nil)); err != nil {
		t.Fatal(err)
	}
	ok, err = db.Exists(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("Exists after insert = %v, %v", ok, err)
	}
}

func TestInsertRejectsMissingFields(t *testing.T) {
	db, _ := newTestDB(t)
	p := samplePosting("", nil)
	if err := db.Insert(context.Background(), p); err == nil {
		t.Fatal("expected error for empty external id")
	}
	p = samplePosting("2", nil)
	p.DecisionLabel = ""
	if err := db.Insert(context.Background(), p); err == nil {
		t.Fatal("expected error for empty decision label")
	}
}

func TestRoundTripKeepsAbsentFieldsAbsent(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	p := samplePosting("5", date(2025, time.January, 3))
	p.GPA = nil
	p.DecisionDate = nil
	p.ApplicantStatus = "International"
	if err := db.Insert(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(ctx, "5")
	if err != nil {
		t.Fatal(err)
	}
	if got.GPA != nil {
		t.Errorf("GPA = %v, want absent", *got.GPA)
	}
	if got.DecisionDate != nil {
		t.Errorf("DecisionDate = %v, want absent", got.DecisionDate)
	}
	if got.QuantScore == nil || *got.QuantScore != 168 {
		t.Errorf("QuantScore = %v, want 168", got.QuantScore)
	}
	if got.ApplicantStatus != "International" {
		t.Errorf("ApplicantStatus = %q", got.ApplicantStatus)
	}
	if got.IngestedAt.IsZero() {
		t.Error("IngestedAt not set")
	}
	if !got.AddedDate.Equal(*date(2025, time.January, 3)) {
		t.Errorf("AddedDate = %v", got.AddedDate)
	}
}

func TestListPendingNotification(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	for _, p := range []domain.Posting{
		samplePosting("c", date(2025, time.February, 3)),
		samplePosting("a", date(2025, time.February, 1)),
		samplePosting("old", date(2025, time.January, 1)),
		samplePosting("b", date(2025, time.February, 2)),
		samplePosting("nodate", nil),
	} {
		if err := db.Insert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	since := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	got, err := db.ListPendingNotification(ctx, since)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ExternalID)
	}
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("pending = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("pending = %v, want %v", ids, want)
		}
	}

	if err := db.MarkNotified(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNotified(ctx, "b"); err != nil {
		t.Fatalf("second MarkNotified: %v", err)
	}
	got, err = db.ListPendingNotification(ctx, since)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ExternalID != "a" || got[1].ExternalID != "c" {
		t.Fatalf("after mark: %+v", got)
	}
}

func TestLockDataDir(t *testing.T) {
	dir := t.TempDir()
	fl, err := LockDataDir(dir)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer fl.Unlock()

	if _, err := LockDataDir(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second lock err = %v, want ErrLocked", err)
	}
}
