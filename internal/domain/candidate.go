package domain

// RawCandidate is a result row as scraped, before normalization.
type RawCandidate struct {
	ExternalID    string
	Institution   string
	ProgramRaw    string
	AddedDateRaw  string
	DecisionLabel string

	// badge row
	Season  string
	Status  string
	GPA     string
	Quant   string
	Verbal  string
	Writing string

	Comment string
}
