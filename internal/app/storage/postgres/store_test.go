package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/app/storage"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

func userFixture() user.User {
	return user.User{Name: "Pat", Email: "pat@example.com", PasswordHash: "hash", Role: user.RoleEmployee}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func requestRows(req request.Request) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "title", "description", "kind", "amount", "status", "created_at", "updated_at"}).
		AddRow(req.ID, req.OwnerID, req.Title, req.Description, req.Kind, req.Amount, req.Status, req.CreatedAt, req.UpdatedAt)
}

func TestGetRequestForUpdateLocksRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	want := request.Request{
		ID: "req-1", OwnerID: "owner-1", Title: "Laptop", Description: "d",
		Kind: request.KindNonMonetary, Status: request.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM requests\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs("req-1").
		WillReturnRows(requestRows(want))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetRequestForUpdate(ctx, "req-1")
		if err != nil {
			return err
		}
		if got.ID != want.ID || got.Status != want.Status {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}

func TestGetRequestForUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.GetRequestForUpdate(ctx, "missing")
		return err
	})
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestWithinTxRollsBackEverything(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO decisions (.+) ON CONFLICT \(request_id, voter_id\)`).
		WithArgs(sqlmock.AnyArg(), "req-1", "voter-1", decision.VoteApproved, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "voter_id", "vote", "created_at", "updated_at"}).
			AddRow("dec-1", "req-1", "voter-1", decision.VoteApproved, time.Now(), time.Now()))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.UpsertDecision(ctx, "req-1", "voter-1", decision.VoteApproved); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx error = %v, want the callback error", err)
	}
}

func TestUpsertDecisionKeepsCreatedAt(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC().Add(-time.Hour)
	updated := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO decisions (.+) DO UPDATE SET vote = EXCLUDED.vote`).
		WithArgs(sqlmock.AnyArg(), "req-1", "voter-1", decision.VoteRejected, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "voter_id", "vote", "created_at", "updated_at"}).
			AddRow("dec-1", "req-1", "voter-1", decision.VoteRejected, created, updated))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		d, err := tx.UpsertDecision(ctx, "req-1", "voter-1", decision.VoteRejected)
		if err != nil {
			return err
		}
		if !d.CreatedAt.Equal(created) {
			t.Fatalf("CreatedAt = %v, want the original recording time %v", d.CreatedAt, created)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}

func TestTranslateErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"unique violation", &pq.Error{Code: "23505"}, apperrors.CodeConflict},
		{"serialization failure", &pq.Error{Code: "40001"}, apperrors.CodeConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, apperrors.CodeConflict},
		{"lock not available", &pq.Error{Code: "55P03"}, apperrors.CodeConflict},
		{"other pq error", &pq.Error{Code: "42601"}, apperrors.CodeInternal},
		{"plain error", errors.New("broken pipe"), apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateErr("op", tt.err); !apperrors.Is(got, tt.want) {
				t.Fatalf("translateErr() = %v, want code %s", got, tt.want)
			}
		})
	}
}

func TestCountRequestsByStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(id\) AS count FROM requests WHERE owner_id = \$1 GROUP BY status`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("approved", 1))

	counts, err := store.CountRequestsByStatus(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[request.StatusPending] != 2 || counts[request.StatusApproved] != 1 || counts[request.StatusRejected] != 0 {
		t.Fatalf("counts = %v, want pending 2, approved 1", counts)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "Pat", "pat@example.com", "hash", "employee", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateUser(context.Background(), userFixture())
	if !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("CreateUser error = %v, want conflict", err)
	}
}
