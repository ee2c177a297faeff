// Command seed loads the Antananarivo demo dataset into an outage database.
// It is idempotent: a database that already contains neighborhoods is left
// untouched.
//
// Usage:
//
//	go run ./cmd/seed -db delestage.db
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/seed"
)

func main() {
	dbPath := flag.String("db", "delestage.db", "path to the sqlite database")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seed.Run(context.Background(), store, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}
