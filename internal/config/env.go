package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Printf("[config] loaded env file=%s", p)
	}
	return nil
}

// ApplyEnv overlays environment overrides on cfg. lookup is os.LookupEnv in
// production. Malformed numeric or boolean values are reported and leave the
// field unchanged.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str("GRADWATCH_DATA_DIR", &cfg.App.DataDir)
	str("DISCORD_CHANNEL_ID", &cfg.Discord.ChannelID)
	num("CHECK_INTERVAL_SECONDS", &cfg.Polling.IntervalSeconds)
	num("POST_LOOKBACK_DAYS", &cfg.Polling.LookbackDays)
	flag("ENABLE_LLM", &cfg.LLM.Enabled)
	str("OPENROUTER_SQL_MODEL", &cfg.LLM.SQLModel)
	str("OPENROUTER_SUMMARY_MODEL", &cfg.LLM.SummaryModel)
	num("OPENROUTER_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds)
	str("OPENROUTER_SITE_URL", &cfg.LLM.SiteURL)
	str("OPENROUTER_APP_NAME", &cfg.LLM.AppName)

	return errors.Join(errs...)
}
