package main

import (
	"context"
	"log"
	"os"

	"coinsleuth/app"
	"coinsleuth/internal"
	"coinsleuth/internal/config"
	"coinsleuth/internal/container"

	"github.com/joho/godotenv"
)

// migrate copies the statistics key space between storage backends, using the
// SLEUTH_DB_FOLDER / SLEUTH_DB_FILE / DATABASE_URL locations of both.
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <from-backend> <to-backend>   (sqlite|postgres|badger)")
	}
	from, to := os.Args[1], os.Args[2]
	if from == to {
		log.Fatal("Source and destination backends must differ")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	ctx := context.Background()
	source, err := container.OpenRepository(ctx, cfg, from, logger)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", from, err)
	}
	defer source.Close()

	dest, err := container.OpenRepository(ctx, cfg, to, logger)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", to, err)
	}
	defer dest.Close()

	log.Printf("Starting migration from %s to %s", from, to)
	report, err := app.CopyRepository(ctx, source, dest, logger)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration complete: %d tables, %d summaries", report.Tables, report.Summaries)
}
