// Package memory is an in-process RepositoryManager with the same observable
// semantics as the PostgreSQL repositories. Every repository it vends shares
// one Store regardless of the handle passed in, so writes are not rolled
// back. It is meant for tests and local tooling.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/identityproviders"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/objects"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/users"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/versions"
)

type joinKey struct {
	versionID  string
	metadataID int64
}

// Store holds all rows. Now stamps created_at when a record has none.
type Store struct {
	mu sync.Mutex

	Now func() time.Time

	objects     map[string]*models.Object
	versions    map[string]*models.Version
	seq         int64
	metadata    map[int64]*models.Metadata
	metaSeq     int64
	joins       map[joinKey]string
	permissions []*models.Permission
	users       map[string]*models.User
	idps        map[string]*models.IdentityProvider
	buckets     map[string]*models.Bucket

	calls map[string]int
}

func NewStore() *Store {
	return &Store{
		Now:      time.Now,
		objects:  map[string]*models.Object{},
		versions: map[string]*models.Version{},
		metadata: map[int64]*models.Metadata{},
		joins:    map[joinKey]string{},
		users:    map[string]*models.User{},
		idps:     map[string]*models.IdentityProvider{},
		buckets:  map[string]*models.Bucket{},
		calls:    map[string]int{},
	}
}

// Calls returns how many times the named repository method ran, for example
// "users.Create" or "identityproviders.Exists".
func (s *Store) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// MetadataRows returns every stored metadata row ordered by id.
func (s *Store) MetadataRows() []models.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Metadata, 0, len(s.metadata))
	for _, m := range s.metadata {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) lock(name string) func() {
	s.mu.Lock()
	s.calls[name]++
	return s.mu.Unlock
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.Now()
	}
	return t
}

// hasGrant is the GrantLookup used to evaluate permission predicates. The
// caller holds s.mu.
func (s *Store) hasGrant(userID, objectID, bucketID string, code models.PermissionCode) bool {
	for _, p := range s.permissions {
		if p.UserID != userID || p.Code != code {
			continue
		}
		if objectID != "" && p.ObjectID == objectID {
			return true
		}
		if bucketID != "" && p.BucketID == bucketID {
			return true
		}
	}
	return false
}

// Handle records one repository request and the handle it was made on.
type Handle struct {
	Repo string
	DB   dbx.DBTX
}

// Manager implements repomanager.RepositoryManager over a Store. The rows
// ignore the handle, but every request is recorded so tests can check which
// handle a unit of work ran on.
type Manager struct {
	Store *Store

	mu      sync.Mutex
	handles []Handle
}

var _ repomanager.RepositoryManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{Store: NewStore()}
}

func (m *Manager) record(repo string, db dbx.DBTX) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = append(m.handles, Handle{Repo: repo, DB: db})
}

// Handles returns the recorded repository requests in order.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Handle(nil), m.handles...)
}

func (m *Manager) ResetHandles() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = nil
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Objects(db dbx.DBTX) objects.Repository {
	m.record("objects", db)
	return objectRepo{m.Store}
}

func (m *Manager) Versions(db dbx.DBTX) versions.Repository {
	m.record("versions", db)
	return versionRepo{m.Store}
}

func (m *Manager) Metadata(db dbx.DBTX) metadata.Repository {
	m.record("metadata", db)
	return metadataRepo{m.Store}
}

func (m *Manager) Permissions(db dbx.DBTX) permissions.Repository {
	m.record("permissions", db)
	return permissionRepo{m.Store}
}

func (m *Manager) Users(db dbx.DBTX) users.Repository {
	m.record("users", db)
	return userRepo{m.Store}
}

func (m *Manager) IdentityProviders(db dbx.DBTX) identityproviders.Repository {
	m.record("identityproviders", db)
	return idpRepo{m.Store}
}

func (m *Manager) Buckets(db dbx.DBTX) buckets.Repository {
	m.record("buckets", db)
	return bucketRepo{m.Store}
}
