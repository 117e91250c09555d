package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gradwatch-engine/internal/domain"
)

// ErrConflict means the external id is already stored. Callers treat it as a
// benign skip.
var ErrConflict = errors.New("posting already exists")

const dateLayout = "2006-01-02"

func (d *DB) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM postings WHERE external_id = ? LIMIT 1;`,
		strings.TrimSpace(externalID),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert stores p in its own transaction. A second insert of the same
// external id returns ErrConflict and leaves the stored row untouched.
func (d *DB) Insert(ctx context.Context, p domain.Posting) error {
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	if p.ExternalID == "" {
		return errors.New("insert posting: missing external id")
	}
	if p.Institution == "" || p.Program == "" || p.DecisionLabel == "" {
		return fmt.Errorf("insert posting %s: missing required field", p.ExternalID)
	}
	if p.IngestedAt.IsZero() {
		p.IngestedAt = time.Now().UTC()
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO postings(
  external_id, institution, program, degree_level, decision_label, decision_date,
  added_date_raw, added_date, season, applicant_status,
  gpa, quant_score, verbal_score, writing_score, comment, notified, ingested_at
)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,0,?)
ON CONFLICT(external_id) DO NOTHING;`,
		p.ExternalID,
		p.Institution,
		p.Program,
		nullString(p.DegreeLevel),
		p.DecisionLabel,
		nullDate(p.DecisionDate),
		p.AddedDateRaw,
		nullDate(p.AddedDate),
		nullString(p.Season),
		nullString(p.ApplicantStatus),
		nullFloat(p.GPA),
		nullFloat(p.QuantScore),
		nullFloat(p.VerbalScore),
		nullFloat(p.WritingScore),
		nullString(p.Comment),
		p.IngestedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert posting %s: %w", p.ExternalID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ListPendingNotification returns undelivered postings added on or after
// since, oldest first.
func (d *DB) ListPendingNotification(ctx context.Context, since time.Time) ([]domain.Posting, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+postingColumns+`
FROM postings
WHERE notified = 0
  AND added_date IS NOT NULL
  AND added_date >= ?
ORDER BY added_date ASC, id ASC;`,
		since.UTC().Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotified flips the delivered flag. Marking twice is harmless.
func (d *DB) MarkNotified(ctx context.Context, externalID string) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE postings SET notified = 1 WHERE external_id = ?;`,
		strings.TrimSpace(externalID),
	)
	if err != nil {
		return fmt.Errorf("mark notified %s: %w", externalID, err)
	}
	return nil
}

func (d *DB) Get(ctx context.Context, externalID string) (domain.Posting, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE external_id = ? LIMIT 1;`,
		strings.TrimSpace(externalID),
	)
	return scanPosting(row)
}

func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings;`).Scan(&n)
	return n, err
}

const postingColumns = `external_id, institution, program, degree_level, decision_label, decision_date,
  added_date_raw, added_date, season, applicant_status,
  gpa, quant_score, verbal_score, writing_score, comment, notified, ingested_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(s scanner) (domain.Posting, error) {
	var (
		p                               domain.Posting
		degree, season, status, comment sql.NullString
		decisionDate, addedDate         sql.NullString
		gpa, quant, verbal, writing     sql.NullFloat64
		notified                        int
		ingestedAt                      string
	)
	if err := s.Scan(
		&p.ExternalID,
		&p.Institution,
		&p.Program,
		&degree,
		&p.DecisionLabel,
		&decisionDate,
		&p.AddedDateRaw,
		&addedDate,
		&season,
		&status,
		&gpa,
		&quant,
		&verbal,
		&writing,
		&comment,
		&notified,
		&ingestedAt,
	); err != nil {
		return domain.Posting{}, err
	}

	p.DegreeLevel = degree.String
	p.Season = season.String
	p.ApplicantStatus = status.String
	p.Comment = comment.String
	p.DecisionDate = parseDate(decisionDate)
	p.AddedDate = parseDate(addedDate)
	p.GPA = floatPtr(gpa)
	p.QuantScore = floatPtr(quant)
	p.VerbalScore = floatPtr(verbal)
	p.WritingScore = floatPtr(writing)
	p.Notified = notified != 0
	p.IngestedAt, _ = time.Parse(time.RFC3339, ingestedAt)
	return p, nil
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
