package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func migrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return src, nil
}

// Migrate applies pending embedded migrations against the pool's database and
// returns the resulting schema version. A dirty version left by a failed run
// is forced back to its predecessor and retried.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (version uint, err error) {
	db := stdlib.OpenDB(*pool.Config().ConnConfig)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("initialize migration driver: %w", err)
	}

	src, err := migrationSource()
	if err != nil {
		_ = driver.Close()
		return 0, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logx.Info().Msg("no migrations applied yet")
	case err != nil:
		return 0, fmt.Errorf("read migration version: %w", err)
	case dirty:
		// The failed file ran in one implicit transaction, so roll the
		// version back to its predecessor and let Up apply it again.
		target := database.NilVersion
		if prev, err := src.Prev(current); err == nil {
			target = int(prev)
		}
		logx.Warn().Uint("version", current).Int("force_to", target).Msg("schema is dirty; forcing version before retry")
		if err := m.Force(target); err != nil {
			return 0, fmt.Errorf("force version %d: %w", target, err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err = m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	logx.Info().Uint("from", current).Uint("to", version).Msg("migrations applied")
	return version, nil
}
