// Package repomanager provides RepositoryManager implementations for
// PostgreSQL (migrated with goose) and for the in-memory store.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/buildings"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	tx *dbx.SQLTransactor
}

// Transactor returns a transactor over the pool the manager was built with.
func (m *PostgresRepositoryManager) Transactor() dbx.Transactor {
	return m.tx
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Profiles(db dbx.DBTX) profiles.Repository {
	return profiles.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Buildings(db dbx.DBTX) buildings.Repository {
	return buildings.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
// Transactions run at read committed; FindByJTI row locks serialize rotations.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{
		tx: dbx.NewSQLTransactor(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}),
	}, nil
}
