package notify

import (
	"fmt"
	"strconv"
	"strings"

	"gradwatch-engine/internal/domain"
)

// FormatPosting renders one posting as a chat message using markdown bold
// and italics.
func FormatPosting(p domain.Posting) string {
	var lines []string

	lines = append(lines, "**"+p.Institution+"**")

	program := p.Program
	if p.DegreeLevel != "" {
		program += " (" + p.DegreeLevel + ")"
	}
	lines = append(lines, program)
	lines = append(lines, "_"+p.DecisionLabel+"_")

	var details []string
	if p.Season != "" {
		details = append(details, p.Season)
	}
	if p.ApplicantStatus != "" {
		details = append(details, p.ApplicantStatus)
	}
	if p.GPA != nil {
		details = append(details, fmt.Sprintf("GPA: %.2f", *p.GPA))
	}

	var gre []string
	if p.QuantScore != nil {
		gre = append(gre, "Q:"+strconv.FormatFloat(*p.QuantScore, 'f', -1, 64))
	}
	if p.VerbalScore != nil {
		gre = append(gre, "V:"+strconv.FormatFloat(*p.VerbalScore, 'f', -1, 64))
	}
	if p.WritingScore != nil {
		gre = append(gre, fmt.Sprintf("AW:%.1f", *p.WritingScore))
	}
	if len(gre) > 0 {
		details = append(details, "GRE: "+strings.Join(gre, " "))
	}
	if len(details) > 0 {
		lines = append(lines, strings.Join(details, " | "))
	}

	if p.Comment != "" {
		lines = append(lines, `"`+p.Comment+`"`)
	}

	lines = append(lines, "Added: "+p.AddedDateRaw)
	return strings.Join(lines, "\n")
}
