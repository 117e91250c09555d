package poll

import (
	"context"
	"fmt"
	"log"
	"time"

	"gradwatch-engine/internal/events"
	"gradwatch-engine/internal/scrape"
	"gradwatch-engine/internal/scrape/types"
)

// Result summarizes one ingestion run.
type Result struct {
	Added     int            `json:"added"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Dropped   int            `json:"dropped"`
	Rebuilt   map[string]int `json:"rebuilt,omitempty"`
	Notified  int            `json:"notified"`
	Scanned   bool           `json:"scanned"`
	NotifyErr string         `json:"notify_error,omitempty"`
}

// RunOnce fetches the newest listing page, stores unseen postings, rebuilds
// the views when anything was added and delivers pending notifications.
// A fetch failure aborts the run before anything is written.
func (c *Coordinator) RunOnce(ctx context.Context) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	startedAt := c.now()
	c.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = true
		st.LastRunAt = startedAt.Format(time.RFC3339)
	})
	c.hub.Emit(events.TypeIngestStarted, nil)

	res, err := c.run(ctx)

	c.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = false
		st.LastAdded = res.Added
		st.LastSkipped = res.Skipped
		st.LastFailed = res.Failed
		st.Notified = res.Notified
		st.Backlog = c.backlog.Load()
		switch {
		case err != nil:
			st.LastError = err.Error()
		case res.NotifyErr != "":
			st.LastError = "notify: " + res.NotifyErr
			st.LastOkAt = c.now().Format(time.RFC3339)
		default:
			st.LastError = ""
			st.LastOkAt = c.now().Format(time.RFC3339)
		}
	})
	c.hub.Emit(events.TypeIngestFinished, res)

	if err != nil {
		log.Printf("[poll] error: %v", err)
		return res, err
	}
	log.Printf("[poll] ok added=%d skipped=%d failed=%d dropped=%d notified=%d took=%s",
		res.Added, res.Skipped, res.Failed, res.Dropped, res.Notified, c.now().Sub(startedAt).Round(time.Millisecond))
	return res, nil
}

func (c *Coordinator) run(ctx context.Context) (Result, error) {
	var res Result

	fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	page, err := c.fetcher.FetchPage(fctx, 1)
	cancel()
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", c.fetcher.Name(), err)
	}
	res.Dropped = page.Dropped

	stats := scrape.ProcessCandidates(ctx, c.st, page.Candidates, c.now())
	res.Added, res.Skipped, res.Failed = stats.Added, stats.Skipped, stats.Failed
	for _, id := range stats.AddedIDs {
		c.hub.Emit(events.TypePostingAdded, map[string]string{"external_id": id})
	}

	var rebuildErr error
	if res.Added > 0 || c.viewsStale.Load() {
		counts, err := c.st.RebuildViews(ctx, c.opts.Views, c.opts.YearFloor)
		if err != nil {
			c.viewsStale.Store(true)
			rebuildErr = fmt.Errorf("rebuild views: %w", err)
			log.Printf("[poll] %v", rebuildErr)
		} else {
			c.viewsStale.Store(false)
			res.Rebuilt = counts
			c.hub.Emit(events.TypeViewsRebuilt, counts)
			log.Printf("[poll] views rebuilt %v", counts)
		}
	}

	if c.notifier != nil && (res.Added > 0 || c.backlog.Load()) {
		res.Scanned = true
		n, err := c.notifyPending(ctx)
		res.Notified = n
		if err != nil {
			c.backlog.Store(true)
			res.NotifyErr = err.Error()
			log.Printf("[poll] notify stopped after %d: %v", n, err)
		} else {
			c.backlog.Store(false)
		}
	}

	return res, rebuildErr
}

func (c *Coordinator) notifyPending(ctx context.Context) (int, error) {
	since := c.now().UTC().AddDate(0, 0, -c.opts.LookbackDays)
	since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)

	pending, err := c.st.ListPendingNotification(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	sent := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := c.notifier.Notify(ctx, p); err != nil {
			return sent, fmt.Errorf("deliver %s: %w", p.ExternalID, err)
		}
		if err := c.st.MarkNotified(ctx, p.ExternalID); err != nil {
			// delivered but not marked; it will be sent again next scan
			return sent, fmt.Errorf("mark %s: %w", p.ExternalID, err)
		}
		sent++
		c.hub.Emit(events.TypeNotified, map[string]string{"external_id": p.ExternalID})
	}
	return sent, nil
}
