// Package memory is an in-process implementation of every repository,
// used with the "memory" DSN and by the service tests. Transactions are
// serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

var errNotSQL = errors.New("memory: handle does not execute SQL")

// handle is the dbx.DBTX vended by the store. It only tells repositories
// whether they run inside a transaction that already holds the store lock.
type handle struct {
	inTx bool
}

func (handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNotSQL
}

func (handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNotSQL
}

// QueryRowContext returns nil; memory handles are never used for SQL.
func (handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

type state struct {
	roles     map[string]struct{}
	users     map[string]*models.User
	userRoles map[string][]string
	profiles  map[string]*models.Profile
	tokens    map[string]*models.RefreshToken
	buildings map[string]*models.Building
}

// Store holds all tables. The zero value is not usable; call NewStore.
type Store struct {
	mu     sync.Mutex
	state  state
	faults map[string]error
	now    func() time.Time
}

// NewStore returns an empty store seeded with the built-in roles.
func NewStore() *Store {
	return &Store{
		state: state{
			roles:     map[string]struct{}{common.RoleAdmin: {}, common.RoleUser: {}},
			users:     map[string]*models.User{},
			userRoles: map[string][]string{},
			profiles:  map[string]*models.Profile{},
			tokens:    map[string]*models.RefreshToken{},
			buildings: map[string]*models.Building{},
		},
		faults: map[string]error{},
		now:    time.Now,
	}
}

// SetFault makes every call of op (for example "refreshtokens.Create")
// fail with err until cleared with a nil err.
func (s *Store) SetFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	return s.faults[op]
}

// lock takes the store lock unless db belongs to a running transaction.
func (s *Store) lock(db dbx.DBTX) func() {
	if h, ok := db.(handle); ok && h.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Transactor returns the dbx.Transactor of the store.
func (s *Store) Transactor() dbx.Transactor {
	return transactor{s: s}
}

type transactor struct {
	s *Store
}

func (t transactor) Conn() dbx.DBTX {
	return handle{}
}

// WithTx runs fn holding the store lock. If fn fails or panics the state
// is restored to what it was before fn started.
func (t transactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	snapshot := t.s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			t.s.state = snapshot
			panic(p)
		}
		if err != nil {
			t.s.state = snapshot
		}
	}()

	return fn(ctx, handle{inTx: true})
}

func (st state) clone() state {
	c := state{
		roles:     make(map[string]struct{}, len(st.roles)),
		users:     make(map[string]*models.User, len(st.users)),
		userRoles: make(map[string][]string, len(st.userRoles)),
		profiles:  make(map[string]*models.Profile, len(st.profiles)),
		tokens:    make(map[string]*models.RefreshToken, len(st.tokens)),
		buildings: make(map[string]*models.Building, len(st.buildings)),
	}
	for k := range st.roles {
		c.roles[k] = struct{}{}
	}
	for k, v := range st.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range st.userRoles {
		c.userRoles[k] = append([]string(nil), v...)
	}
	for k, v := range st.profiles {
		c.profiles[k] = copyProfile(v)
	}
	for k, v := range st.tokens {
		c.tokens[k] = copyToken(v)
	}
	for k, v := range st.buildings {
		b := *v
		c.buildings[k] = &b
	}
	return c
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.BannedReason = copyString(u.BannedReason)
	c.BannedBy = copyString(u.BannedBy)
	c.BannedAt = copyTime(u.BannedAt)
	c.LastLoginAt = copyTime(u.LastLoginAt)
	c.Roles = append([]string(nil), u.Roles...)
	c.Profile = nil
	return &c
}

func copyProfile(p *models.Profile) *models.Profile {
	c := *p
	c.DisplayName = copyString(p.DisplayName)
	c.FirstName = copyString(p.FirstName)
	c.LastName = copyString(p.LastName)
	c.Phone = copyString(p.Phone)
	c.AvatarURL = copyString(p.AvatarURL)
	c.Timezone = copyString(p.Timezone)
	c.Meta = append([]byte(nil), p.Meta...)
	return &c
}

func copyToken(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	c.RevokedReason = copyString(t.RevokedReason)
	c.RevokedAt = copyTime(t.RevokedAt)
	c.ReplacedBy = copyString(t.ReplacedBy)
	c.UserAgent = copyString(t.UserAgent)
	c.IPAddress = copyString(t.IPAddress)
	return &c
}
