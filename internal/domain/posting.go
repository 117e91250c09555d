package domain

import "time"

// Posting is one stored admissions result.
type Posting struct {
	ExternalID      string
	Institution     string
	Program         string
	DegreeLevel     string // PhD / Masters; "" when the source gives none
	DecisionLabel   string // e.g. "Accepted on 15 Dec"
	DecisionDate    *time.Time
	AddedDateRaw    string
	AddedDate       *time.Time
	Season          string
	ApplicantStatus string // American / International / Other
	GPA             *float64
	QuantScore      *float64
	VerbalScore     *float64
	WritingScore    *float64
	Comment         string
	Notified        bool
	IngestedAt      time.Time
}
