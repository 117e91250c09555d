package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/events"
	"gradwatch-engine/internal/scheduler"
	"gradwatch-engine/internal/scrape"
	"gradwatch-engine/internal/scrape/types"
	"gradwatch-engine/internal/store"
)

// ErrAlreadyRunning is returned by RunOnce while another run is in progress.
var ErrAlreadyRunning = errors.New("ingestion already running")

// Notifier delivers one posting to the outbound channel.
type Notifier interface {
	Notify(ctx context.Context, p domain.Posting) error
}

// Store is what a run needs from the record store.
type Store interface {
	scrape.PostingStore
	RebuildViews(ctx context.Context, views []store.ViewSpec, yearFloor int) (map[string]int, error)
	ListPendingNotification(ctx context.Context, since time.Time) ([]domain.Posting, error)
	MarkNotified(ctx context.Context, externalID string) error
}

type Options struct {
	LookbackDays int
	YearFloor    int
	Views        []store.ViewSpec
	FetchTimeout time.Duration
}

type Coordinator struct {
	fetcher  types.Fetcher
	st       Store
	notifier Notifier
	hub      *events.Hub
	opts     Options

	status     atomic.Value // types.ScrapeStatus
	running    atomic.Bool
	backlog    atomic.Bool
	viewsStale atomic.Bool

	now func() time.Time
}

// New builds a coordinator. notifier and hub may be nil. The first run always
// scans for pending notifications so anything left undelivered by a previous
// process goes out.
func New(f types.Fetcher, st Store, n Notifier, hub *events.Hub, opts Options) *Coordinator {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	if len(opts.Views) == 0 {
		opts.Views = store.DefaultViews
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 2 * time.Minute
	}
	c := &Coordinator{
		fetcher:  f,
		st:       st,
		notifier: n,
		hub:      hub,
		opts:     opts,
		now:      time.Now,
	}
	c.backlog.Store(true)
	c.status.Store(types.ScrapeStatus{Backlog: true})
	return c
}

// Start runs the coordinator every interval until ctx is done. It blocks.
func (c *Coordinator) Start(ctx context.Context, interval time.Duration) {
	scheduler.Every(ctx, interval, "poll", func(ctx context.Context) error {
		_, err := c.RunOnce(ctx)
		if errors.Is(err, ErrAlreadyRunning) {
			return nil
		}
		return err
	})
}

func (c *Coordinator) Status() types.ScrapeStatus {
	st, _ := c.status.Load().(types.ScrapeStatus)
	return st
}

func (c *Coordinator) Running() bool { return c.running.Load() }

func (c *Coordinator) updateStatus(fn func(*types.ScrapeStatus)) {
	st := c.Status()
	fn(&st)
	c.status.Store(st)
}
