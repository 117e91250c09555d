package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"gradwatch-engine/internal/bot"
	"gradwatch-engine/internal/config"
	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/events"
	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/poll"
	"gradwatch-engine/internal/scrape/types"
)

// Ingester is the ingestion coordinator as seen by the API.
type Ingester interface {
	RunOnce(ctx context.Context) (poll.Result, error)
	Status() types.ScrapeStatus
	Running() bool
}

type PostingReader interface {
	ListPendingNotification(ctx context.Context, since time.Time) ([]domain.Posting, error)
	Count(ctx context.Context) (int, error)
}

type Asker interface {
	Ask(ctx context.Context, question string, recent []llm.Message) bot.Reply
}

type Deps struct {
	DB *sql.DB // writer pool, used for WAL checkpoints

	Hub *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
	// OnConfigUpdate applies the settings that can change without a restart.
	OnConfigUpdate func(config.Config)

	Ingest   Ingester
	Postings PostingReader
	Asker    Asker // nil when no question pipeline is wired

	ChartsDir string
}
