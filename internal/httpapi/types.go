package httpapi

import (
	"time"

	"gradwatch-engine/internal/domain"
)

type postingJSON struct {
	ExternalID      string   `json:"external_id"`
	Institution     string   `json:"institution"`
	Program         string   `json:"program"`
	DegreeLevel     string   `json:"degree_level,omitempty"`
	DecisionLabel   string   `json:"decision_label"`
	DecisionDate    string   `json:"decision_date,omitempty"`
	AddedDate       string   `json:"added_date,omitempty"`
	AddedDateRaw    string   `json:"added_date_raw"`
	Season          string   `json:"season,omitempty"`
	ApplicantStatus string   `json:"applicant_status,omitempty"`
	GPA             *float64 `json:"gpa,omitempty"`
	QuantScore      *float64 `json:"quant_score,omitempty"`
	VerbalScore     *float64 `json:"verbal_score,omitempty"`
	WritingScore    *float64 `json:"writing_score,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	Notified        bool     `json:"notified"`
	IngestedAt      string   `json:"ingested_at"`
}

func toPostingJSON(p domain.Posting) postingJSON {
	return postingJSON{
		ExternalID:      p.ExternalID,
		Institution:     p.Institution,
		Program:         p.Program,
		DegreeLevel:     p.DegreeLevel,
		DecisionLabel:   p.DecisionLabel,
		DecisionDate:    dateString(p.DecisionDate),
		AddedDate:       dateString(p.AddedDate),
		AddedDateRaw:    p.AddedDateRaw,
		Season:          p.Season,
		ApplicantStatus: p.ApplicantStatus,
		GPA:             p.GPA,
		QuantScore:      p.QuantScore,
		VerbalScore:     p.VerbalScore,
		WritingScore:    p.WritingScore,
		Comment:         p.Comment,
		Notified:        p.Notified,
		IngestedAt:      p.IngestedAt.UTC().Format(time.RFC3339),
	}
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Text      string   `json:"text"`
	SQL       string   `json:"sql,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	PlotType  string   `json:"plot_type,omitempty"`
	ChartURL  string   `json:"chart_url,omitempty"`
}
