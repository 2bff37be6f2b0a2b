package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/article"
	"github.com/newsword/newsword/pkg/category"
	"github.com/newsword/newsword/pkg/config"
	"github.com/newsword/newsword/pkg/crawl"
	"github.com/newsword/newsword/pkg/db"
	"github.com/newsword/newsword/pkg/dictionary"
	"github.com/newsword/newsword/pkg/disambig"
	"github.com/newsword/newsword/pkg/fetch"
	"github.com/newsword/newsword/pkg/scraper"
	"github.com/newsword/newsword/pkg/server"
	"github.com/newsword/newsword/pkg/vocab"
)

// app holds the wired services for one process.
type app struct {
	cfg          *config.Config
	log          *zap.Logger
	conn         *sql.DB
	scrapers     []*scraper.Scraper
	orchestrator *crawl.Orchestrator
	importer     *vocab.Importer
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	conn, err := db.OpenMigrated(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	var store article.Store
	switch cfg.Database.ArticleBackend {
	case "memory":
		store = article.NewMemoryStore()
	default:
		store = db.NewArticleStore(conn)
	}

	registry := category.Default()
	fetcher := fetch.NewHTTPFetcher(cfg.Crawl.FetchTimeout, cfg.Crawl.UserAgent)
	locks := article.NewURLLock()
	opts := scraper.Options{
		MaxPages:   cfg.Crawl.MaxPages,
		FlushEvery: cfg.Crawl.FlushEvery,
		Delay:      cfg.Crawl.ArticleDelay,
	}
	sites := []scraper.Site{
		scraper.NewHankyung(scraper.SiteConfig{BaseURL: cfg.Crawl.HankyungURL}),
		scraper.NewScienceTimes(scraper.SiteConfig{BaseURL: cfg.Crawl.ScienceURL}),
	}

	a := &app{cfg: cfg, log: log, conn: conn}
	var crawlScrapers []crawl.Scraper
	for _, site := range sites {
		s := scraper.New(site, registry, fetcher, store, locks, opts, log)
		a.scrapers = append(a.scrapers, s)
		crawlScrapers = append(crawlScrapers, s)
	}
	a.orchestrator = crawl.New(crawlScrapers, cfg.Crawl.Workers, log)

	importOpts := []vocab.Option{
		vocab.WithActivities(db.NewActivityStore(conn)),
		vocab.WithLimits(vocab.LimitsFromConfig(cfg.Vocab)),
	}
	chooser := &disambig.Chooser{Timeout: cfg.AI.Timeout, MinConfidence: cfg.AI.MinConfidence, Log: log}
	if cfg.AI.APIKey != "" {
		chooser.AI = disambig.NewChatClient(cfg.AI, log)
	} else {
		log.Info("ai disambiguation disabled, using heuristic sense choice")
	}
	importOpts = append(importOpts, vocab.WithChooser(chooser))

	a.importer = vocab.NewImporter(
		dictionary.New(cfg.Dictionary, log),
		db.NewWordStore(conn),
		db.NewWordbookStore(conn),
		log,
		importOpts...,
	)
	return a, nil
}

func (a *app) server() *server.Server {
	deps := server.Deps{
		Crawler:   a.orchestrator,
		Importer:  a.importer,
		Wordbooks: db.NewWordbookStore(a.conn),
		Words:     db.NewWordStore(a.conn),
	}
	for _, s := range a.scrapers {
		deps.Scrapers = append(deps.Scrapers, s)
	}
	return server.New(a.cfg.Server, deps, a.log)
}

func (a *app) Close() error {
	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
