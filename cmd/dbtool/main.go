package main

import (
	"context"
	"flag"
	"ice-route-service/internal/adapters/repositories"
	"ice-route-service/internal/config"
	"ice-route-service/internal/platform/db"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// dbtool applies migrations and loads the demo seed into Postgres.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	skipSeed := flag.Bool("migrate-only", false, "apply migrations without seeding")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()

	slog.Info("applying migrations")
	n, err := db.Migrate(ctx, conn)
	if err != nil {
		slog.Error("migration failed", "err", err)
		os.Exit(1)
	}
	slog.Info("schema ready", "migrations_applied", n)

	if *skipSeed {
		return
	}

	seedPath := config.Get("SEED_PATH", "data/seeds/seed.json")
	seed, err := repositories.LoadSeed(seedPath)
	if err != nil {
		slog.Error("load seed", "path", seedPath, "err", err)
		os.Exit(1)
	}
	if err := repositories.SeedPostgres(ctx, conn, seed); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
	slog.Info("seeding complete",
		"depots", len(seed.Depots), "vehicles", len(seed.Vehicles),
		"customers", len(seed.Customers), "orders", len(seed.Orders))
}
