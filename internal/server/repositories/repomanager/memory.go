package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/buildings"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager vends repositories over a memory.Store.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager(store *memory.Store) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: store}
}

// Store exposes the underlying store, mainly for fault injection in tests.
func (m *MemoryRepositoryManager) Store() *memory.Store {
	return m.store
}

// RunMigrations is a no-op; the store has no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Transactor() dbx.Transactor {
	return m.store.Transactor()
}

func (m *MemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.store.Users(db)
}

func (m *MemoryRepositoryManager) Profiles(db dbx.DBTX) profiles.Repository {
	return m.store.Profiles(db)
}

func (m *MemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens(db)
}

func (m *MemoryRepositoryManager) Buildings(db dbx.DBTX) buildings.Repository {
	return m.store.Buildings(db)
}
