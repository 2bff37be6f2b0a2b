package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/config"
	"github.com/newsword/newsword/pkg/logging"
	"github.com/newsword/newsword/pkg/vocab"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "newsword:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	serve      bool
	crawl      string
	importCSV  string
	importText string
	userID     int64
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("newsword", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config (default $CONFIG_PATH or ./config.yaml)")
	fs.BoolVar(&o.serve, "serve", false, "Run the HTTP server")
	fs.StringVar(&o.crawl, "crawl", "", "Comma-separated categories to crawl, or \"all\"")
	fs.StringVar(&o.importCSV, "import-csv", "", "CSV file of unknown words to import")
	fs.StringVar(&o.importText, "import-text", "", "Raw unknown-word text to import")
	fs.Int64Var(&o.userID, "user", 0, "User id owning the wordbook for imports")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	modes := 0
	for _, set := range []bool{o.serve, o.crawl != "", o.importCSV != "", o.importText != ""} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return o, errors.New("one of -serve, -crawl, -import-csv or -import-text is required")
	case modes > 1:
		return o, errors.New("-serve, -crawl, -import-csv and -import-text are mutually exclusive")
	case (o.importCSV != "" || o.importText != "") && o.userID <= 0:
		return o, errors.New("imports need a positive -user")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
	}()

	switch {
	case o.serve:
		return a.server().Run(ctx)
	case o.crawl != "":
		var categories []string
		if !strings.EqualFold(strings.TrimSpace(o.crawl), "all") {
			categories = strings.Split(o.crawl, ",")
		}
		return writeJSON(stdout, a.orchestrator.Run(ctx, categories))
	case o.importCSV != "":
		f, err := os.Open(o.importCSV)
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		words, err := vocab.ReadCSV(f)
		if err != nil {
			return err
		}
		res, err := a.importer.ImportList(ctx, o.userID, words)
		if err != nil {
			return err
		}
		return writeJSON(stdout, res)
	default:
		res, err := a.importer.ImportWords(ctx, o.userID, o.importText)
		if err != nil {
			return err
		}
		return writeJSON(stdout, res)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
