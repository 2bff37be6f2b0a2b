// Package server exposes crawling and word import over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/config"
	"github.com/newsword/newsword/pkg/crawl"
	"github.com/newsword/newsword/pkg/db"
	"github.com/newsword/newsword/pkg/logging"
	"github.com/newsword/newsword/pkg/scraper"
	"github.com/newsword/newsword/pkg/vocab"
)

// SiteScraper crawls one category of one site.
type SiteScraper interface {
	Name() string
	Scrape(ctx context.Context, category string) (scraper.Result, error)
}

// CrawlRunner runs an orchestrated crawl.
type CrawlRunner interface {
	Run(ctx context.Context, categories []string) crawl.Summary
}

// WordImporter turns unknown words into wordbook entries.
type WordImporter interface {
	ImportWords(ctx context.Context, userID int64, rawText string) (vocab.ImportResult, error)
	ImportActivity(ctx context.Context, activityID int64) (vocab.ImportResult, error)
}

// WordbookReader finds a user's wordbook and the words in it.
type WordbookReader interface {
	FindByUser(ctx context.Context, userID int64) (int64, error)
	WordIDs(ctx context.Context, wordbookID int64) ([]int64, error)
}

// WordReader loads stored words.
type WordReader interface {
	FindByID(ctx context.Context, id int64) (*db.Word, error)
}

// Deps are the services behind the routes. Nil members disable their routes with 503.
type Deps struct {
	Scrapers  []SiteScraper
	Crawler   CrawlRunner
	Importer  WordImporter
	Wordbooks WordbookReader
	Words     WordReader
}

// Server is the HTTP transport.
type Server struct {
	cfg       config.ServerConfig
	scrapers  map[string]SiteScraper
	crawler   CrawlRunner
	importer  WordImporter
	wordbooks WordbookReader
	words     WordReader
	log       *zap.Logger
	engine    *gin.Engine
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		scrapers:  make(map[string]SiteScraper, len(deps.Scrapers)),
		crawler:   deps.Crawler,
		importer:  deps.Importer,
		wordbooks: deps.Wordbooks,
		words:     deps.Words,
		log:       logging.OrNop(logger).With(zap.String("component", "server")),
	}
	for _, sc := range deps.Scrapers {
		s.scrapers[sc.Name()] = sc
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.log), gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/crawl/:site/:category", s.crawlCategory)
	r.POST("/crawl/run", s.crawlRun)
	r.GET("/users/:userId/wordbook", s.wordbook)
	r.POST("/users/:userId/wordbook/words", s.importWords)
	r.POST("/scrap-activities/:id/unknown-words", s.importActivity)
	return r
}

// Run serves until ctx is done, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
