package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_MissingOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+sessions`).
		WithArgs("sid-1", int64(99), now, now.Add(time.Hour)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "sessions_user_id_fkey"})

	err := repo.Create(context.Background(), &models.Session{
		ID: "sid-1", UserID: 99, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetWithOwner_JoinScan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "created_at", "expires_at",
		"id", "email", "hashed_secret", "role", "active", "created_at",
	}).AddRow(
		"sid-1", int64(7), now, now.Add(time.Hour),
		int64(7), "alice@x.com", "hash", "admin", true, now.Add(-time.Hour),
	)
	mock.ExpectQuery(`(?s)SELECT\s+s\.id,.*FROM\s+sessions\s+s\s+JOIN\s+users\s+u`).
		WithArgs("sid-1").
		WillReturnRows(rows)

	s, u, err := repo.GetWithOwner(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("GetWithOwner error: %v", err)
	}
	if s.ID != "sid-1" || s.UserID != 7 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if u.ID != 7 || u.Role != models.RoleAdmin || !u.Active {
		t.Fatalf("unexpected owner: %+v", u)
	}
}

func TestGetWithOwner_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+s\.id,.*FROM\s+sessions\s+s\s+JOIN\s+users\s+u`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.GetWithOwner(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpire_GuardedUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()

	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+expires_at.*expires_at\s+>`).
		WithArgs("sid-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	revoked, err := repo.Expire(context.Background(), "sid-1", at)
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if !revoked {
		t.Fatal("expected first expire to report a revoked row")
	}

	// Already expired: the guard matches nothing.
	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+expires_at.*expires_at\s+>`).
		WithArgs("sid-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err = repo.Expire(context.Background(), "sid-1", at)
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if revoked {
		t.Fatal("expected repeat expire to be a no-op")
	}
}

func TestLatestActiveForUser_None(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id.*ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs(int64(7), at).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestActiveForUser(context.Background(), 7, at)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
