package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/composedeck/internal/app/migrate"
	httpx "github.com/splax/composedeck/internal/http"
	"github.com/splax/composedeck/internal/repository"
	"github.com/splax/composedeck/internal/repository/postgres"
	"github.com/splax/composedeck/internal/repository/sqlite"
	"github.com/splax/composedeck/internal/service/auth"
	"github.com/splax/composedeck/internal/service/catalog"
	"github.com/splax/composedeck/internal/service/dns"
	"github.com/splax/composedeck/internal/service/project"
	"github.com/splax/composedeck/pkg/config"
	"github.com/splax/composedeck/pkg/logger"
)

type store interface {
	repository.UserRepository
	repository.ProjectRepository
}

type openedStore struct {
	repo  store
	ping  func(context.Context) error
	close func()
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	registrar, err := dns.New(cfg, log)
	if err != nil {
		log.Error("failed to configure dns registrar", "error", err)
		os.Exit(1)
	}
	if !registrar.Enabled() {
		log.Info("dns publishing disabled")
	}

	authSvc := auth.New(st.repo, log, cfg)
	projectSvc := project.New(st.repo, registrar, log, cfg)
	catalogSvc := catalog.New(cfg, log)
	if url, ok := catalogSvc.RegistryURL(); ok {
		log.Info("compose registry configured", "url", url)
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, projectSvc, catalogSvc, limiter, httpx.Site{Host: cfg.PublicHost, Origin: cfg.PublicOrigin()}, st.ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver, "public_host", cfg.PublicHost)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// openStore connects the configured driver and applies pending migrations.
func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (openedStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case migrate.DriverPostgres, "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return openedStore{}, fmt.Errorf("connect to database: %w", err)
		}
		runner, err := migrate.New(migrate.DriverPostgres, cfg.DatabaseURL, log)
		if err != nil {
			pool.Close()
			return openedStore{}, fmt.Errorf("configure migrations: %w", err)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			pool.Close()
			return openedStore{}, fmt.Errorf("database ping: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return openedStore{}, fmt.Errorf("migrations: %w", err)
		}
		return openedStore{repo: postgres.New(pool), ping: pool.Ping, close: pool.Close}, nil
	case migrate.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return openedStore{}, err
		}
		runner, err := migrate.NewWithDB(migrate.DriverSQLite, db, log)
		if err != nil {
			db.Close()
			return openedStore{}, err
		}
		if err := runner.Ensure(ctx); err != nil {
			db.Close()
			return openedStore{}, fmt.Errorf("migrations: %w", err)
		}
		repo := sqlite.New(db)
		return openedStore{repo: repo, ping: repo.Ping, close: func() { _ = repo.Close() }}, nil
	default:
		return openedStore{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
