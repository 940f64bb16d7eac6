package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Driver names accepted by New.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Runner wraps database migration capabilities.
type Runner struct {
	db      *sql.DB
	owned   bool
	dialect string
	dir     string
	log     *slog.Logger
}

// New returns a migration runner backed by goose, opening its own connection to dsn.
func New(driver, dsn string, log *slog.Logger) (Runner, error) {
	if dsn == "" {
		return Runner{}, errors.New("empty database dsn")
	}
	sqlDriver, err := sqlDriverName(driver)
	if err != nil {
		return Runner{}, err
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return Runner{}, fmt.Errorf("open sql connection: %w", err)
	}
	runner, err := NewWithDB(driver, db, log)
	if err != nil {
		db.Close()
		return Runner{}, err
	}
	runner.owned = true
	return runner, nil
}

// NewWithDB returns a runner on an existing connection; Close leaves it open.
func NewWithDB(driver string, db *sql.DB, log *slog.Logger) (Runner, error) {
	if db == nil {
		return Runner{}, errors.New("nil database provided")
	}
	if log == nil {
		log = slog.Default()
	}
	switch driver {
	case DriverPostgres:
		return Runner{db: db, dialect: "postgres", dir: "migrations/postgres", log: log}, nil
	case DriverSQLite:
		return Runner{db: db, dialect: "sqlite3", dir: "migrations/sqlite", log: log}, nil
	default:
		return Runner{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Ensure applies pending migrations.
func (r Runner) Ensure(ctx context.Context) error {
	if err := r.configure(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	r.log.Info("applying migrations", "dialect", r.dialect)
	if err := goose.UpContext(runCtx, r.db, r.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	r.log.Info("migrations applied")
	return nil
}

// Status reports applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	if err := r.configure(); err != nil {
		return err
	}
	r.log.Info("migration status", "dialect", r.dialect)
	if err := goose.StatusContext(ctx, r.db, r.dir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r Runner) Down(ctx context.Context, targetVersion int64) error {
	if err := r.configure(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if targetVersion > 0 {
		r.log.Info("rolling back migrations", "target", targetVersion)
		if err := goose.DownToContext(runCtx, r.db, r.dir, targetVersion); err != nil {
			return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
		}
	} else {
		r.log.Info("rolling back latest migration")
		if err := goose.DownContext(runCtx, r.db, r.dir); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
	}

	r.log.Info("rollback complete")
	return nil
}

// Ping ensures the database connection is alive.
func (r Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the connection when the runner opened it.
func (r Runner) Close() {
	if r.owned && r.db != nil {
		r.db.Close()
	}
}

func (r Runner) configure() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	return nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}
}
