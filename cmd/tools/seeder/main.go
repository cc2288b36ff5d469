package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/repo"
)

func main() {
	_ = godotenv.Load()
	logger := obs.Component(obs.NewLogger("console", "info"), "seeder")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	now := time.Now().UTC()
	yearOut := now.AddDate(1, 0, 0)
	firstFlightLimit := int32(500)
	rules := []discount.Rule{
		{Code: "WELCOME10", Kind: discount.KindPercent, PercentBps: 1000, Active: true, ValidTo: &yearOut},
		{Code: "SPRING25", Kind: discount.KindFixed, Value: 25 * money.Dollar, MinSpend: 150 * money.Dollar, Active: true, ValidFrom: &now, ValidTo: &yearOut},
		{Code: "FIRSTFLIGHT", Kind: discount.KindFixed, Value: 10 * money.Dollar, UsageLimit: &firstFlightLimit, Active: true},
		{Code: "RETIRED", Kind: discount.KindPercent, PercentBps: 5000, Active: false},
	}

	failed := 0
	for _, rule := range rules {
		if err := repo.SaveRule(ctx, pool, rule); err != nil {
			failed++
			logger.Error().Err(err).Str("code", rule.Code).Msg("seed discount code")
			continue
		}
		logger.Info().Str("code", rule.Code).Msg("seeded discount code")
	}
	if failed > 0 {
		logger.Fatal().Int("failed", failed).Msg("seeding incomplete")
	}
	logger.Info().Int("codes", len(rules)).Msg("seeding completed")
}
