package scrape

import (
	"context"
	"log"
	"sort"
	"time"

	"gradwatch-engine/internal/scrape/types"

	"golang.org/x/sync/errgroup"
)

// PageOutcome is one page of a range fetch. Err is set when that page failed;
// other pages are unaffected.
type PageOutcome struct {
	Page   int
	Result types.PageResult
	Err    error
}

// FetchRange fetches pages start..end with at most workers requests in flight
// and returns the outcomes ordered by page number. The fetcher's own limiter
// still spaces requests per host.
func FetchRange(ctx context.Context, f types.Fetcher, start, end, workers int, pageTimeout time.Duration) []PageOutcome {
	if start < 1 {
		start = 1
	}
	if end < start {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if pageTimeout <= 0 {
		pageTimeout = 2 * time.Minute
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make(chan PageOutcome, end-start+1)

	for page := start; page <= end; page++ {
		page := page

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, pageTimeout)
			defer cancel()

			res, err := f.FetchPage(fctx, page)
			if err != nil {
				log.Printf("[%s] page=%d error: %v", f.Name(), page, err)
			}
			results <- PageOutcome{Page: page, Result: res, Err: err}
			return nil // best-effort: one bad page doesn't cancel siblings
		})
	}

	_ = g.Wait()
	close(results)

	out := make([]PageOutcome, 0, end-start+1)
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}
