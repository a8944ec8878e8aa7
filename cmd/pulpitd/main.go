package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/pulpit/internal/api"
	"github.com/you/pulpit/internal/config"
	"github.com/you/pulpit/internal/notify"
	"github.com/you/pulpit/internal/platform"
	"github.com/you/pulpit/internal/publisher"
	"github.com/you/pulpit/internal/storage"
)

// Advisory lock key guarding the publication tick. A second instance
// (or an overlapping tick) skips its pass when the lock is held.
const runLockKey = 8291

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations and the advisory lock use the stdlib adapter; the store
	// runs on pgxpool.
	sqlDB, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open postgres", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("set goose dialect", zap.Error(err))
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open pgx pool", zap.Error(err))
	}
	defer pool.Close()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()

	store := storage.New(pool)
	registry := platform.NewRegistry(
		platform.NewFacebook(cfg.FacebookPageID, cfg.FacebookAccessToken, nil),
		platform.NewWhatsApp(cfg.WhatsAppPhoneID, cfg.WhatsAppAccessToken, cfg.WhatsAppRecipient, nil),
	)
	pub := publisher.New(store, registry, notify.New(rdb), log,
		publisher.WithBatchSize(cfg.ClaimBatchSize),
		publisher.WithStaleClaimAge(cfg.StaleClaimAge),
		publisher.WithRetryPolicy(platform.RetryPolicy{
			MaxAttempts: cfg.DispatchAttempts,
			Backoff:     500 * time.Millisecond,
			Timeout:     cfg.DispatchTimeout,
		}),
	)

	srv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewServer(store, pub, log).Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("admin server listening", zap.String("addr", cfg.AdminAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		return tickLoop(gctx, sqlDB, pub, cfg.TickInterval, log)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("exited", zap.Error(err))
	}
}

// tickLoop runs one publication pass per interval, guarded by a session
// advisory lock held on a dedicated connection.
func tickLoop(ctx context.Context, db *sql.DB, pub *publisher.Publisher, interval time.Duration, log *zap.Logger) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}

		var ok bool
		if err := conn.QueryRowContext(ctx, `select pg_try_advisory_lock($1)`, runLockKey).Scan(&ok); err != nil {
			log.Error("advisory lock", zap.Error(err))
			continue
		}
		if !ok {
			log.Debug("tick skipped, lock held elsewhere")
			continue
		}

		sum, err := pub.Run(ctx, time.Now().UTC())
		if err != nil {
			log.Error("publication pass failed", zap.Error(err))
		} else if sum.Claimed > 0 {
			log.Info("publication pass complete",
				zap.Int("claimed", sum.Claimed), zap.Int("sent", sum.Sent), zap.Int("failed", sum.Failed))
		}

		if _, err := conn.ExecContext(ctx, `select pg_advisory_unlock($1)`, runLockKey); err != nil {
			log.Error("advisory unlock", zap.Error(err))
		}
	}
}

func newLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
