// Command import_tradebook imports a broker tradebook CSV into the journal
// database without going through the HTTP server.
//
// Usage:
//
//	import_tradebook -source zerodha -file tradebook.csv [-db ./data/tradejournal.db]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/domain"
)

func main() {
	source := flag.String("source", "zerodha", "tradebook source: zerodha or dhan")
	file := flag.String("file", "", "path to the tradebook CSV")
	dbPath := flag.String("db", "./data/tradejournal.db", "path to the journal database")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import_tradebook -source zerodha|dhan -file tradebook.csv [-db path]")
		os.Exit(2)
	}

	var importSource domain.ImportSource
	switch *source {
	case "zerodha":
		importSource = domain.SourceZerodha
	case "dhan":
		importSource = domain.SourceDhan
	default:
		fmt.Fprintf(os.Stderr, "unknown source %q (want zerodha or dhan)\n", *source)
		os.Exit(2)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}

	ctx := context.Background()
	log := logger.NewStdLogger(logger.LevelWarn)

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *dbPath, Logger: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	svc, err := app.New(app.ServiceConfig{
		Logger:   log,
		Trades:   repo,
		Batches:  repo,
		Settings: repo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize service: %v\n", err)
		os.Exit(1)
	}

	result, err := svc.ImportTradebook(ctx, importSource, string(data), filepath.Base(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("batch %s: %d new trades, %d updated trades\n",
		result.Batch.ID, result.NewTradesCount, result.UpdatedTradesCount)
	if result.SkippedUnmatchedSellQty > 0 {
		fmt.Printf("skipped unmatched sell quantity: %g\n", result.SkippedUnmatchedSellQty)
	}
}
