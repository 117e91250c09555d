package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gradwatch-engine/internal/store"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var (
	viewNameRe  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	snowflakeRe = regexp.MustCompile(`^\d{15,20}$`)
)

// NormalizeAndValidate trims and de-duplicates the configured values, fills
// zero values with defaults, and returns the normalized copy together with
// the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation
	def := Default()

	out.App.DataDir = strings.TrimSpace(out.App.DataDir)
	out.Discord.ChannelID = strings.TrimSpace(out.Discord.ChannelID)
	out.Source.BaseURL = strings.TrimSpace(out.Source.BaseURL)
	out.Source.UserAgent = strings.TrimSpace(out.Source.UserAgent)
	out.LLM.SQLModel = strings.TrimSpace(out.LLM.SQLModel)
	out.LLM.SummaryModel = strings.TrimSpace(out.LLM.SummaryModel)
	out.Charts.Dir = strings.TrimSpace(out.Charts.Dir)

	if out.App.DataDir == "" {
		out.App.DataDir = def.App.DataDir
	}
	if out.Source.UserAgent == "" {
		out.Source.UserAgent = def.Source.UserAgent
	}
	if out.Aggregation.YearFloor == 0 {
		out.Aggregation.YearFloor = def.Aggregation.YearFloor
	}
	if len(out.Aggregation.Views) == 0 {
		out.Aggregation.Views = def.Aggregation.Views
	}
	if out.Query.MaxRows == 0 {
		out.Query.MaxRows = def.Query.MaxRows
	}
	if out.Charts.Dir == "" {
		out.Charts.Dir = def.Charts.Dir
	}

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Polling.IntervalSeconds <= 0 {
		res.addErr("polling.interval_seconds must be > 0")
	} else if out.Polling.IntervalSeconds < 30 {
		res.addWarn("polling.interval_seconds is very low (%d) and may get the client rate limited.", out.Polling.IntervalSeconds)
	}
	if out.Polling.LookbackDays <= 0 {
		res.addErr("polling.lookback_days must be > 0")
	}

	if out.Discord.ChannelID == "" {
		res.addWarn("discord.channel_id is empty; new results will not be announced.")
	} else if !snowflakeRe.MatchString(out.Discord.ChannelID) {
		res.addErr("discord.channel_id must be a numeric channel id")
	}

	if u, err := url.Parse(out.Source.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		res.addErr("source.base_url must be an absolute http(s) URL")
	}
	if out.Source.RequestDelayMS < 0 {
		res.addErr("source.request_delay_ms must be >= 0")
	} else if out.Source.RequestDelayMS < 500 {
		res.addWarn("source.request_delay_ms is %d; requests under 500ms apart are impolite.", out.Source.RequestDelayMS)
	}
	if out.Source.TimeoutSeconds <= 0 {
		res.addErr("source.timeout_seconds must be > 0")
	}
	if !out.Source.RespectRobots {
		res.addWarn("source.respect_robots is false; robots.txt will be ignored.")
	}

	if out.Aggregation.YearFloor < 1990 || out.Aggregation.YearFloor > 2100 {
		res.addErr("aggregation.year_floor must be a plausible year")
	}
	seenView := map[string]bool{}
	var views []store.ViewSpec
	for i, v := range out.Aggregation.Views {
		v.Name = strings.ToLower(strings.TrimSpace(v.Name))
		v.DegreeLevel = strings.TrimSpace(v.DegreeLevel)
		switch {
		case !viewNameRe.MatchString(v.Name) || v.Name == "postings":
			res.addErr("aggregation.views[%d].name %q is not a valid table name", i, v.Name)
			continue
		case v.DegreeLevel == "":
			res.addErr("aggregation.views[%d].degree_level is required", i)
			continue
		case seenView[v.Name]:
			res.addWarn("aggregation.views[%d] duplicates %q and was dropped", i, v.Name)
			continue
		}
		seenView[v.Name] = true
		views = append(views, v)
	}
	out.Aggregation.Views = views

	if out.LLM.Enabled {
		if u, err := url.Parse(strings.TrimSpace(out.LLM.BaseURL)); err != nil || u.Host == "" {
			res.addErr("llm.base_url must be an absolute URL when llm.enabled=true")
		}
		if out.LLM.SQLModel == "" {
			res.addErr("llm.sql_model is required when llm.enabled=true")
		}
		if out.LLM.SummaryModel == "" {
			res.addWarn("llm.summary_model is empty; llm.sql_model will be used for summaries.")
			out.LLM.SummaryModel = out.LLM.SQLModel
		}
		if out.LLM.TimeoutSeconds <= 0 {
			res.addErr("llm.timeout_seconds must be > 0")
		}
	}

	if out.Query.TimeoutSeconds <= 0 {
		res.addErr("query.timeout_seconds must be > 0")
	}
	if out.Query.MaxRows < 0 {
		res.addErr("query.max_rows must be > 0")
	} else if out.Query.MaxRows > 100000 {
		res.addWarn("query.max_rows is %d; large results are slow to format.", out.Query.MaxRows)
	}

	return out, res
}
