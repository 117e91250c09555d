package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"gradwatch-engine/internal/answer"
	"gradwatch-engine/internal/bot"
	"gradwatch-engine/internal/chart"
	"gradwatch-engine/internal/config"
	"gradwatch-engine/internal/discord"
	"gradwatch-engine/internal/events"
	"gradwatch-engine/internal/httpapi"
	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/poll"
	"gradwatch-engine/internal/query"
	"gradwatch-engine/internal/scrape/gradcafe"
	"gradwatch-engine/internal/scrape/util"
	"gradwatch-engine/internal/secrets"
	"gradwatch-engine/internal/store"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("env load failed: %v", err)
	}

	// Engine data dir: env first, then the built-in default.
	dataDir := os.Getenv("GRADWATCH_DATA_DIR")
	if dataDir == "" {
		dataDir = config.Default().App.DataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	lock, err := store.LockDataDir(dataDir)
	if err != nil {
		log.Fatalf("data dir %s: %v", dataDir, err)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
			log.Printf("[config] ignoring bad env override: %v", err)
		}
		cfg.App.DataDir = dataDir
		out, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Printf("[config] warning: %s", w)
		}
		if !vr.OK() {
			return out, errors.New("invalid config: " + vr.Errors[0])
		}
		return out, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "gradwatch.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	ro, err := store.OpenReadOnly(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer ro.Close()

	hub := events.NewHub()

	// Question pipeline
	apiKey, err := secrets.Get(secrets.OpenRouterAPIKey)
	if err != nil && cfg.LLM.Enabled {
		log.Printf("[llm] %v; questions will fail until it is set", err)
	}
	completer := llm.NewOpenRouter(llm.Config{
		APIKey:  apiKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLMTimeout(),
		SiteURL: cfg.LLM.SiteURL,
		AppName: cfg.LLM.AppName,
	})
	chartsDir := cfg.Charts.Dir
	if !filepath.IsAbs(chartsDir) {
		chartsDir = filepath.Join(dataDir, chartsDir)
	}
	b := bot.New(
		query.NewPlanner(completer, cfg.LLM.SQLModel, cfg.Aggregation.Views).WithYearFloor(cfg.Aggregation.YearFloor),
		query.NewExecutor(ro.Pool, cfg.QueryTimeout(), cfg.Query.MaxRows),
		answer.NewComposer(completer, cfg.LLM.SummaryModel),
		chart.Renderer{Dir: chartsDir},
		cfg.LLM.Enabled,
	)

	// Discord is optional; without a token the engine still ingests and
	// serves the HTTP API.
	var notifier poll.Notifier
	if token, err := secrets.Get(secrets.DiscordToken); err != nil {
		log.Printf("[discord] disabled: %v", err)
	} else {
		dc, err := discord.New(token, cfg.Discord.ChannelID, b)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		if err := dc.Open(); err != nil {
			log.Fatalf("discord open: %v", err)
		}
		defer dc.Close()
		if cfg.Discord.ChannelID != "" {
			notifier = dc
		}
	}

	fetcher := gradcafe.New(gradcafe.Config{
		BaseURL:       cfg.Source.BaseURL,
		UserAgent:     cfg.Source.UserAgent,
		Timeout:       cfg.SourceTimeout(),
		RespectRobots: cfg.Source.RespectRobots,
	}, util.NewHostLimiter(cfg.RequestDelay()))

	coord := poll.New(fetcher, db, notifier, hub, poll.Options{
		LookbackDays: cfg.Polling.LookbackDays,
		YearFloor:    cfg.Aggregation.YearFloor,
		Views:        cfg.Aggregation.Views,
		FetchTimeout: 2 * cfg.SourceTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go coord.Start(ctx, cfg.PollInterval())

	handler := httpapi.NewHandler(httpapi.Deps{
		DB:          db.Pool,
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		OnConfigUpdate: func(c config.Config) {
			b.SetEnabled(c.LLM.Enabled)
		},
		Ingest:    coord,
		Postings:  db,
		Asker:     b,
		ChartsDir: chartsDir,
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}

	token, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	srv := &http.Server{ReadHeaderTimeout: 5 * time.Second}
	root := http.NewServeMux()
	root.Handle("/shutdown", shutdownHandler(&token, srv))
	root.Handle("/", handler)
	srv.Handler = root

	if err := os.WriteFile(filepath.Join(dataDir, "shutdown.token"), []byte(token), 0o600); err != nil {
		log.Printf("[engine] could not write shutdown token: %v", err)
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("[engine] listening on http://%s (db=%s interval=%s llm=%v)", addr, dbPath, cfg.PollInterval(), cfg.LLM.Enabled)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Printf("[engine] stopped")
}
