package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"missionrewards/internal/db"
)

func main() {
	_ = godotenv.Load()

	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	admin := flag.String("admin", "", "email of a registered user to promote to admin")
	skipSamples := flag.Bool("skip-samples", false, "do not insert sample missions and vouchers")
	flag.Parse()

	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	if *databaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := sqlx.ConnectContext(ctx, "pgx", *databaseURL)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if !*skipSamples {
		res, err := db.Seed(ctx, conn, time.Now())
		if err != nil {
			logger.Fatal("seed failed", zap.Error(err))
		}
		logger.Info("sample data seeded", zap.Int("missions", res.Missions), zap.Int("vouchers", res.Vouchers))
	}

	if *admin != "" {
		id, err := db.PromoteAdmin(ctx, conn, *admin)
		if errors.Is(err, db.ErrUserNotFound) {
			logger.Fatal("no user with that email", zap.String("email", *admin))
		}
		if err != nil {
			logger.Fatal("promote admin", zap.Error(err))
		}
		logger.Info("user promoted to admin", zap.Int64("user_id", id), zap.String("email", *admin))
	}
}
