package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gradwatch-engine/internal/store"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Polling struct {
		IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
		LookbackDays    int `yaml:"lookback_days" json:"lookback_days"`
	} `yaml:"polling" json:"polling"`

	Discord struct {
		ChannelID string `yaml:"channel_id" json:"channel_id"`
	} `yaml:"discord" json:"discord"`

	Source struct {
		BaseURL        string `yaml:"base_url" json:"base_url"`
		UserAgent      string `yaml:"user_agent" json:"user_agent"`
		RequestDelayMS int    `yaml:"request_delay_ms" json:"request_delay_ms"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
		RespectRobots  bool   `yaml:"respect_robots" json:"respect_robots"`
	} `yaml:"source" json:"source"`

	Aggregation struct {
		YearFloor int              `yaml:"year_floor" json:"year_floor"`
		Views     []store.ViewSpec `yaml:"views" json:"views"`
	} `yaml:"aggregation" json:"aggregation"`

	LLM struct {
		Enabled        bool   `yaml:"enabled" json:"enabled"`
		BaseURL        string `yaml:"base_url" json:"base_url"`
		SQLModel       string `yaml:"sql_model" json:"sql_model"`
		SummaryModel   string `yaml:"summary_model" json:"summary_model"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
		SiteURL        string `yaml:"site_url" json:"site_url"`
		AppName        string `yaml:"app_name" json:"app_name"`
	} `yaml:"llm" json:"llm"`

	Query struct {
		TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
		MaxRows        int `yaml:"max_rows" json:"max_rows"`
	} `yaml:"query" json:"query"`

	Charts struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"charts" json:"charts"`
}

// Load reads path over the built-in defaults, so keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "data"
	cfg.Polling.IntervalSeconds = 60
	cfg.Polling.LookbackDays = 1
	cfg.Source.BaseURL = "https://www.thegradcafe.com/survey/?institution=&program=economics"
	cfg.Source.UserAgent = "GradWatch/1.0 (+local)"
	cfg.Source.RequestDelayMS = 1000
	cfg.Source.TimeoutSeconds = 20
	cfg.Source.RespectRobots = true
	cfg.Aggregation.YearFloor = 2017
	cfg.Aggregation.Views = append([]store.ViewSpec(nil), store.DefaultViews...)
	cfg.LLM.Enabled = true
	cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	cfg.LLM.SQLModel = "openai/gpt-oss-120b"
	cfg.LLM.SummaryModel = "openai/gpt-oss-120b"
	cfg.LLM.TimeoutSeconds = 30
	cfg.LLM.AppName = "gradwatch"
	cfg.Query.TimeoutSeconds = 30
	cfg.Query.MaxRows = 1000
	cfg.Charts.Dir = "charts"
	return cfg
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Source.RequestDelayMS) * time.Millisecond
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutSeconds) * time.Second
}
