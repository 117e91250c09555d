package query

import (
	"fmt"
	"strings"

	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/store"
)

const plannerPersona = "You are Gary, a skilled and friendly SQL engineer based in Minneapolis. " +
	"You help graduate school applicants understand admissions data by writing clear, efficient SQL queries. " +
	"If the user is not asking about the admissions data, respond with exactly: none. " +
	"Otherwise, return ONLY the SQL query."

// BuildPlannerPrompt returns the system and user prompts for turning question
// into SQL against views. The first view whose degree level is "PhD" is the
// default target. yearFloor is the exclusive added-year floor the views were
// built with; zero leaves the range out of the schema text.
func BuildPlannerPrompt(views []store.ViewSpec, yearFloor int, question string, recent []llm.Message) (system, user string) {
	if len(views) == 0 {
		views = store.DefaultViews
	}
	def, masters := pickViews(views)

	var b strings.Builder

	// ── Recent context ────────────────────────────────────────────────────
	b.WriteString("Recent channel context (most recent last):\n")
	if ctx := llm.FormatRecentContext(recent); ctx != "" {
		b.WriteString(ctx)
	} else {
		b.WriteString("No recent channel context.")
	}
	b.WriteString("\n\n")

	// ── Schema ────────────────────────────────────────────────────────────
	b.WriteString("DATABASE SCHEMA:\n")
	for _, v := range views {
		b.WriteString(buildViewSchema(v, yearFloor))
	}
	b.WriteString("\n")

	// ── Rules ─────────────────────────────────────────────────────────────
	b.WriteString(buildRules(def, masters))

	// ── Examples ──────────────────────────────────────────────────────────
	b.WriteString(buildExamples(def))

	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", question)
	b.WriteString("Generate ONLY the SQL query, nothing else. No explanations, no markdown formatting, just the SQL query.\nSQL:")

	return plannerPersona, b.String()
}

func pickViews(views []store.ViewSpec) (def, masters string) {
	for _, v := range views {
		switch {
		case v.DegreeLevel == "PhD" && def == "":
			def = v.Name
		case v.DegreeLevel == "Masters" && masters == "":
			masters = v.Name
		}
	}
	if def == "" {
		def = views[0].Name
	}
	return def, masters
}

func buildViewSchema(v store.ViewSpec, yearFloor int) string {
	scope := v.DegreeLevel + " results"
	if yearFloor > 0 {
		scope += fmt.Sprintf(", decisions added %d or later", yearFloor+1)
	}
	return fmt.Sprintf(`Table: %s (%s)
Columns:
  - institution: TEXT (university name)
  - program: TEXT (program name, e.g. "Economics")
  - decision_date: TEXT (ISO date "YYYY-MM-DD" of the decision)
  - gpa: REAL (undergraduate GPA, NULL when not reported)
  - quant_score: REAL (GRE quantitative score, NULL when not reported)
  - result: TEXT (Accepted, Rejected, Interview, Wait listed, Other)
`, v.Name, scope)
}

func buildRules(def, masters string) string {
	var b strings.Builder
	b.WriteString("IMPORTANT NOTES:\n")
	b.WriteString("- The database is SQLite; use SQLite-compatible SQL (e.g., strftime for dates)\n")
	if masters != "" {
		fmt.Fprintf(&b, "- Unless the user explicitly asks about Masters/MA/MS, query the %s table; for Masters questions use %s\n", def, masters)
	} else {
		fmt.Fprintf(&b, "- Query the %s table by default\n", def)
	}
	b.WriteString("- Never reference the postings table; only the tables listed above exist for you\n")
	b.WriteString("- Match outcomes by prefix, e.g. result LIKE 'Accepted%'\n")
	b.WriteString("- Exclude NULLs when averaging (e.g., AVG(gpa) ... WHERE gpa IS NOT NULL)\n")
	b.WriteString("- Always use proper GROUP BY when using aggregate functions\n")
	b.WriteString("- Return a single SELECT statement\n\n")
	return b.String()
}

func buildExamples(def string) string {
	examples := []struct{ q, sql string }{
		{
			"How many acceptances are there?",
			"SELECT COUNT(*) AS acceptance_count FROM %[1]s WHERE result LIKE 'Accepted%%'",
		},
		{
			"What are the top 5 schools with the most acceptances?",
			"SELECT institution, COUNT(*) AS acceptance_count FROM %[1]s WHERE result LIKE 'Accepted%%' GROUP BY institution ORDER BY acceptance_count DESC LIMIT 5",
		},
		{
			"What is the average GPA of accepted students?",
			"SELECT AVG(gpa) AS avg_gpa FROM %[1]s WHERE result LIKE 'Accepted%%' AND gpa IS NOT NULL",
		},
		{
			"What is the acceptance rate at Stanford?",
			"SELECT SUM(CASE WHEN result LIKE 'Accepted%%' THEN 1 ELSE 0 END) * 100.0 / COUNT(*) AS acceptance_pct FROM %[1]s WHERE institution LIKE '%%Stanford%%'",
		},
		{
			"Show the trend of acceptances by month",
			"SELECT strftime('%%Y-%%m', decision_date) AS month, COUNT(*) AS acceptance_count FROM %[1]s WHERE result LIKE 'Accepted%%' GROUP BY month ORDER BY month",
		},
		{
			"Compare interviews between MIT and Harvard",
			"SELECT institution, COUNT(*) AS interview_count FROM %[1]s WHERE result LIKE 'Interview%%' AND (institution LIKE '%%MIT%%' OR institution LIKE '%%Massachusetts Institute%%' OR institution LIKE '%%Harvard%%') GROUP BY institution",
		},
	}

	var b strings.Builder
	b.WriteString("EXAMPLE QUERIES:\n\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", ex.q, fmt.Sprintf(ex.sql, def))
	}
	return b.String()
}
