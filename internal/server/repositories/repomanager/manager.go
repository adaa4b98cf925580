package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/buildings"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX and the transactor
// that produces such DBTX values.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Transactor() dbx.Transactor
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Buildings(db dbx.DBTX) buildings.Repository
}
