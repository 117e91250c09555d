package types

import (
	"context"
	"errors"

	"gradwatch-engine/internal/domain"
)

// ErrParse means the page had no recognisable result table.
var ErrParse = errors.New("parse: no result rows on page")

// ErrUpstreamUnavailable covers transport failures and non-2xx responses.
var ErrUpstreamUnavailable = errors.New("source unavailable")

// PageResult is one listing page. Dropped counts rows missing an external id
// or institution.
type PageResult struct {
	Page       int
	Candidates []domain.RawCandidate
	Dropped    int
}

type ScrapeStatus struct {
	LastRunAt   string `json:"last_run_at"`
	LastOkAt    string `json:"last_ok_at"`
	LastError   string `json:"last_error"`
	LastAdded   int    `json:"last_added"`
	LastSkipped int    `json:"last_skipped"`
	LastFailed  int    `json:"last_failed"`
	Notified    int    `json:"notified"`
	Backlog     bool   `json:"backlog"`
	Running     bool   `json:"running"`
}

type Fetcher interface {
	Name() string
	FetchPage(ctx context.Context, page int) (PageResult, error)
}
