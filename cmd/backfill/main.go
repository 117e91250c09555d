// Command backfill loads historical listing pages into the record store.
// It takes the data dir lock, so it cannot run next to the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"gradwatch-engine/internal/config"
	"gradwatch-engine/internal/scrape"
	"gradwatch-engine/internal/scrape/gradcafe"
	"gradwatch-engine/internal/scrape/util"
	"gradwatch-engine/internal/store"
)

type totals struct {
	pages, failedPages, dropped   int
	added, skipped, failedRecords int
}

func main() {
	start := flag.Int("start", 1, "first page to fetch")
	end := flag.Int("end", 1529, "last page to fetch")
	workers := flag.Int("workers", 4, "pages fetched concurrently")
	batch := flag.Int("batch", 10, "pages per batch")
	dataDir := flag.String("data-dir", "", "data directory (default: GRADWATCH_DATA_DIR or config default)")
	flag.Parse()

	if *end < *start {
		log.Fatalf("-end (%d) must be >= -start (%d)", *end, *start)
	}
	if *batch < 1 {
		*batch = 1
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("env load failed: %v", err)
	}
	cfg := config.Default()
	if *dataDir == "" {
		*dataDir = os.Getenv("GRADWATCH_DATA_DIR")
	}
	if *dataDir == "" {
		*dataDir = cfg.App.DataDir
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatal(err)
	}
	if p := filepath.Join(*dataDir, "config.yml"); fileExists(p) {
		loaded, err := config.Load(p)
		if err != nil {
			log.Fatalf("config load failed (%s): %v", p, err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		log.Printf("[config] ignoring bad env override: %v", err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		log.Fatalf("invalid config: %v", vr.Errors)
	}

	lock, err := store.LockDataDir(*dataDir)
	if err != nil {
		log.Fatalf("data dir %s: %v", *dataDir, err)
	}
	defer func() { _ = lock.Unlock() }()

	db, err := store.Open(filepath.Join(*dataDir, "gradwatch.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := gradcafe.New(gradcafe.Config{
		BaseURL:       cfg.Source.BaseURL,
		UserAgent:     cfg.Source.UserAgent,
		Timeout:       cfg.SourceTimeout(),
		RespectRobots: cfg.Source.RespectRobots,
	}, util.NewHostLimiter(cfg.RequestDelay()))

	began := time.Now()
	var t totals
	for lo := *start; lo <= *end && ctx.Err() == nil; lo += *batch {
		hi := min(lo+*batch-1, *end)
		outcomes := scrape.FetchRange(ctx, fetcher, lo, hi, *workers, 2*cfg.SourceTimeout())

		// Inserts stay sequential; the store has a single writer connection.
		before := t.added
		for _, o := range outcomes {
			t.pages++
			if o.Err != nil {
				t.failedPages++
				continue
			}
			t.dropped += o.Result.Dropped
			st := scrape.ProcessCandidates(ctx, db, o.Result.Candidates, time.Now())
			t.added += st.Added
			t.skipped += st.Skipped
			t.failedRecords += st.Failed
		}
		log.Printf("[backfill] pages %d-%d done added=%d total_added=%d", lo, hi, t.added-before, t.added)
	}

	if t.added > 0 {
		counts, err := db.RebuildViews(context.Background(), cfg.Aggregation.Views, cfg.Aggregation.YearFloor)
		if err != nil {
			log.Printf("[backfill] rebuild views failed: %v", err)
		} else {
			log.Printf("[backfill] views rebuilt %v", counts)
		}
	}

	total, _ := db.Count(context.Background())
	fmt.Printf("pages fetched:   %s (%s failed)\n", humanize.Comma(int64(t.pages)), humanize.Comma(int64(t.failedPages)))
	fmt.Printf("records added:   %s\n", humanize.Comma(int64(t.added)))
	fmt.Printf("records skipped: %s\n", humanize.Comma(int64(t.skipped)))
	fmt.Printf("records failed:  %s (+%s dropped while parsing)\n", humanize.Comma(int64(t.failedRecords)), humanize.Comma(int64(t.dropped)))
	fmt.Printf("postings stored: %s\n", humanize.Comma(int64(total)))
	fmt.Printf("elapsed:         %s\n", time.Since(began).Round(time.Second))
	if ctx.Err() != nil {
		fmt.Println("interrupted; re-run with the same range to continue")
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
