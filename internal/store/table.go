package store

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS postings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id TEXT NOT NULL,
  institution TEXT NOT NULL,
  program TEXT NOT NULL,
  degree_level TEXT,
  decision_label TEXT NOT NULL,
  decision_date TEXT,
  added_date_raw TEXT NOT NULL DEFAULT '',
  added_date TEXT,
  season TEXT,
  applicant_status TEXT,
  gpa REAL,
  quant_score REAL,
  verbal_score REAL,
  writing_score REAL,
  comment TEXT,
  notified INTEGER NOT NULL DEFAULT 0,
  ingested_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_postings_external_id
ON postings(external_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_postings_pending
ON postings(notified, added_date);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_postings_institution
ON postings(institution);
`); err != nil {
		return err
	}

	// Back-compat for dev DBs created before scores were split out.
	for _, col := range []string{"verbal_score", "writing_score"} {
		if !columnExists(tx, "postings", col) {
			if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE postings ADD COLUMN %s REAL;`, col)); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
