package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"missionrewards/internal/auth"
	"missionrewards/internal/config"
	"missionrewards/internal/db"
	"missionrewards/internal/handlers"
	mw "missionrewards/internal/middleware"
	"missionrewards/internal/services"
	"missionrewards/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := sqlx.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(10)
	dbConn.SetConnMaxLifetime(2 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		return err
	}
	if err := db.RunMigrations(ctx, dbConn); err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	payoutKey, err := cfg.PayoutKey()
	if err != nil {
		return err
	}
	payout, err := services.NewPayoutCipher(payoutKey)
	if err != nil {
		return err
	}

	tokens := auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL)
	ledger := services.NewPointsLedger(dbConn, payout, logger)
	tracker := services.NewMissionTracker(dbConn, store, logger)
	accounts := services.NewAccountService(dbConn, tracker, tokens, store, logger)

	limiter, err := mw.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 0, logger)
	if err != nil {
		return err
	}

	routerCfg := handlers.RouterConfig{
		Logger:      logger,
		Auth:        mw.NewAuthMiddleware(tokens, accounts, logger),
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.Storage.Driver == config.StorageLocal {
		routerCfg.UploadDir = cfg.Storage.UploadDir
	}
	router := handlers.NewRouter(routerCfg, handlers.Services{
		Accounts:  accounts,
		Missions:  tracker,
		Ledger:    ledger,
		Catalog:   services.NewCatalog(dbConn),
		Review:    services.NewProofReview(dbConn, ledger, store, logger),
		Dashboard: services.NewDashboard(dbConn),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newStore builds the configured artifact store wrapped with timeouts and
// retries.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	var next storage.Store
	switch cfg.Storage.Driver {
	case config.StorageS3:
		s3, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PublicURL: cfg.Storage.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		next = s3
	default:
		local, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		next = local
	}
	return &storage.Retrying{
		Next:    next,
		Timeout: cfg.Storage.UploadTimeout,
		Retries: cfg.Storage.UploadRetries,
		Backoff: cfg.Storage.RetryBackoff,
		Logger:  logger,
	}, nil
}
