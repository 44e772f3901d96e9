package services

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/glyphlab/moji/internal/server/repositories/interpretations"
	"github.com/glyphlab/moji/internal/server/repositories/logs"
	"github.com/glyphlab/moji/internal/server/repositories/sessions"
	"github.com/glyphlab/moji/internal/server/repositories/users"
)

// --- in-memory repositories ---
//
// The fakes ignore the DBTX handle: transactional atomicity is covered by the
// dbx and repository tests, while these tests exercise service semantics.

type memStore struct {
	nextUserID   int64
	nextInterpID int64
	nextLogID    int64

	users    map[int64]*models.User
	sessions map[string]*models.Session
	interps  map[string]*models.Interpretation
	logs     []*models.LogEntry

	appendErr error // when set, log appends fail with this error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		sessions: make(map[string]*models.Session),
		interps:  make(map[string]*models.Interpretation),
	}
}

type memUsersRepo struct{ s *memStore }

func (r *memUsersRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return nil, common.ErrDuplicateEmail
		}
	}
	r.s.nextUserID++
	u := *user
	u.ID = r.s.nextUserID
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = &u
	return &u, nil
}

func (r *memUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsersRepo) UpdateRole(_ context.Context, id int64, role models.Role) error {
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r *memUsersRepo) UpdateEmail(_ context.Context, id int64, email string) error {
	for _, u := range r.s.users {
		if u.Email == email && u.ID != id {
			return common.ErrDuplicateEmail
		}
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Email = email
	return nil
}

func (r *memUsersRepo) UpdateSecret(_ context.Context, id int64, hashedSecret string) error {
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.HashedSecret = hashedSecret
	return nil
}

func (r *memUsersRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Active = active
	return nil
}

type memSessionsRepo struct{ s *memStore }

func (r *memSessionsRepo) Create(_ context.Context, session *models.Session) error {
	if _, ok := r.s.users[session.UserID]; !ok {
		return common.ErrNotFound
	}
	cp := *session
	r.s.sessions[cp.ID] = &cp
	return nil
}

func (r *memSessionsRepo) Get(_ context.Context, id string) (*models.Session, error) {
	s, ok := r.s.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionsRepo) GetWithOwner(ctx context.Context, id string) (*models.Session, *models.User, error) {
	s, ok := r.s.sessions[id]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	u, ok := r.s.users[s.UserID]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	sc, uc := *s, *u
	return &sc, &uc, nil
}

func (r *memSessionsRepo) Expire(_ context.Context, id string, at time.Time) (bool, error) {
	s, ok := r.s.sessions[id]
	if !ok || !at.Before(s.ExpiresAt) {
		return false, nil
	}
	s.ExpiresAt = at
	return true, nil
}

func (r *memSessionsRepo) ExpireAllForUser(_ context.Context, userID int64, at time.Time) error {
	for _, s := range r.s.sessions {
		if s.UserID == userID && at.Before(s.ExpiresAt) {
			s.ExpiresAt = at
		}
	}
	return nil
}

func (r *memSessionsRepo) LatestActiveForUser(_ context.Context, userID int64, at time.Time) (*models.Session, error) {
	var newest *models.Session
	for _, s := range r.s.sessions {
		if s.UserID != userID || !at.Before(s.ExpiresAt) {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, common.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

type memInterpsRepo struct{ s *memStore }

func (r *memInterpsRepo) Create(_ context.Context, interp *models.Interpretation) (*models.Interpretation, error) {
	if _, ok := r.s.interps[interp.Key]; ok {
		return nil, common.ErrDuplicateKey
	}
	if _, ok := r.s.users[interp.CreatedBy]; !ok {
		return nil, common.ErrNotFound
	}
	r.s.nextInterpID++
	cp := *interp
	cp.ID = r.s.nextInterpID
	r.s.interps[cp.Key] = &cp
	return &cp, nil
}

func (r *memInterpsRepo) GetByKey(_ context.Context, key string) (*models.Interpretation, error) {
	i, ok := r.s.interps[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *memInterpsRepo) UpdateExplanation(_ context.Context, key string, explanation string) (*models.Interpretation, error) {
	i, ok := r.s.interps[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	i.Explanation = explanation
	cp := *i
	return &cp, nil
}

func (r *memInterpsRepo) Delete(_ context.Context, key string) error {
	if _, ok := r.s.interps[key]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.interps, key)
	return nil
}

type memLogsRepo struct{ s *memStore }

func (r *memLogsRepo) Append(_ context.Context, userID int64, action string, at time.Time) (*models.LogEntry, error) {
	if r.s.appendErr != nil {
		return nil, r.s.appendErr
	}
	if _, ok := r.s.users[userID]; !ok {
		return nil, common.ErrNotFound
	}
	r.s.nextLogID++
	entry := &models.LogEntry{ID: r.s.nextLogID, Action: action, CreatedAt: at, UserID: userID}
	r.s.logs = append(r.s.logs, entry)
	return entry, nil
}

func (r *memLogsRepo) Get(_ context.Context, id int64) (*models.LogEntry, error) {
	for _, e := range r.s.logs {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memLogsRepo) SelectByUser(_ context.Context, userID int64) ([]*models.LogEntry, error) {
	return r.selectWhere(func(e *models.LogEntry) bool { return e.UserID == userID }), nil
}

func (r *memLogsRepo) SelectByAction(_ context.Context, action string) ([]*models.LogEntry, error) {
	return r.selectWhere(func(e *models.LogEntry) bool { return e.Action == action }), nil
}

func (r *memLogsRepo) SelectByTimeRange(_ context.Context, from, to time.Time) ([]*models.LogEntry, error) {
	return r.selectWhere(func(e *models.LogEntry) bool {
		return !e.CreatedAt.Before(from) && e.CreatedAt.Before(to)
	}), nil
}

func (r *memLogsRepo) Delete(_ context.Context, id int64) error {
	for i, e := range r.s.logs {
		if e.ID == id {
			r.s.logs = append(r.s.logs[:i], r.s.logs[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memLogsRepo) selectWhere(keep func(*models.LogEntry) bool) []*models.LogEntry {
	var out []*models.LogEntry
	for _, e := range r.s.logs {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// fakeRepoManager vends the in-memory repositories regardless of the handle.
type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return &memUsersRepo{s: m.s} }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository       { return &memSessionsRepo{s: m.s} }
func (m *fakeRepoManager) Interpretations(dbx.DBTX) interpretations.Repository {
	return &memInterpsRepo{s: m.s}
}
func (m *fakeRepoManager) Logs(dbx.DBTX) logs.Repository { return &memLogsRepo{s: m.s} }

// --- test harness ---

type testEnv struct {
	store *memStore
	db    *sql.DB
	clock *fakeClock

	audit       *AuditService
	credentials *CredentialService
	sessions    *SessionService
	registry    *RegistryService
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestEnv builds every service over the in-memory store, a sqlmock pool
// that accepts any number of transactions, and a pinned clock. Lower bcrypt
// cost keeps the suite fast.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	store := newMemStore()
	rm := &fakeRepoManager{s: store}
	cfg := &config.Config{
		SessionTTLDefault: 30 * time.Minute,
		SessionTTLMax:     2 * time.Hour,
		BcryptCost:        bcryptMinCostForTests,
		StorageTimeout:    5 * time.Second,
	}
	logger := logging.NewJSON(io.Discard, "error")
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	audit := NewAuditService(db, rm, logger, cfg)
	audit.now = clock.Now
	credentials := NewCredentialService(db, rm, audit, logger, cfg)
	credentials.now = clock.Now
	sessionSvc := NewSessionService(db, rm, audit, logger, cfg)
	sessionSvc.now = clock.Now
	registry := NewRegistryService(db, rm, audit, nil, logger, cfg)

	return &testEnv{
		store:       store,
		db:          db,
		clock:       clock,
		audit:       audit,
		credentials: credentials,
		sessions:    sessionSvc,
		registry:    registry,
	}
}

const bcryptMinCostForTests = 4

// mustRegister registers a user and optionally forces a role.
func (e *testEnv) mustRegister(t *testing.T, email, secret string, role models.Role) *models.User {
	t.Helper()
	u, err := e.credentials.Register(context.Background(), email, secret)
	if err != nil {
		t.Fatalf("Register(%s) error: %v", email, err)
	}
	if role != "" && role != models.RoleUser {
		e.store.users[u.ID].Role = role
		u.Role = role
	}
	return u
}

func (e *testEnv) lastLogAction(t *testing.T) string {
	t.Helper()
	if len(e.store.logs) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return e.store.logs[len(e.store.logs)-1].Action
}
