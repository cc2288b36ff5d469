package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/repo"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.Component(obs.NewLogger("console", "info"), "migrate")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	if *down > 0 {
		if err := repo.MigrateDown(dbURL, *down); err != nil {
			logger.Fatal().Err(err).Int("steps", *down).Msg("rollback failed")
		}
		logger.Info().Int("steps", *down).Msg("rolled back")
		return
	}
	if err := repo.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
	logger.Info().Msg("migrations applied")
}
