// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/app/storage"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

// Store implements the storage interfaces over a PostgreSQL database.
type Store struct {
	db *sqlx.DB
}

var _ storage.RequestStore = (*Store)(nil)
var _ storage.DecisionStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TxRunner = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn inside one transaction. Commit on nil, rollback on error
// or panic. Serialisation and lock errors surface as Conflict so callers know
// a full retry is safe.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = txx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, &pgTx{tx: txx}); err != nil {
		_ = txx.Rollback()
		return err
	}
	if err := txx.Commit(); err != nil {
		return translateErr("commit transaction", err)
	}
	return nil
}

// pgTx runs the unit-of-work queries on one *sqlx.Tx.
type pgTx struct {
	tx *sqlx.Tx
}

var _ storage.Tx = (*pgTx)(nil)

const requestColumns = `id, owner_id, title, description, kind, amount, status, created_at, updated_at`

func (t *pgTx) GetRequestForUpdate(ctx context.Context, id string) (request.Request, error) {
	var req request.Request
	err := t.tx.GetContext(ctx, &req, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE id = $1
		FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, apperrors.NotFound("request", id)
	}
	if err != nil {
		return request.Request{}, translateErr("get request for update", err)
	}
	return req, nil
}

func (t *pgTx) InsertRequest(ctx context.Context, req request.Request) (request.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = request.StatusPending
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO requests (id, owner_id, title, description, kind, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, req.OwnerID, req.Title, req.Description, req.Kind, req.Amount, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return request.Request{}, translateErr("insert request", err)
	}
	return req, nil
}

func (t *pgTx) UpdateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	req.UpdatedAt = time.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE requests
		SET title = $2, description = $3, kind = $4, amount = $5, updated_at = $6
		WHERE id = $1
	`, req.ID, req.Title, req.Description, req.Kind, req.Amount, req.UpdatedAt)
	if err != nil {
		return request.Request{}, translateErr("update request", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, apperrors.NotFound("request", req.ID)
	}
	return req, nil
}

func (t *pgTx) SetRequestStatus(ctx context.Context, id string, status request.Status) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE requests
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, time.Now().UTC())
	if err != nil {
		return translateErr("set request status", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("request", id)
	}
	return nil
}

func (t *pgTx) UpsertDecision(ctx context.Context, requestID, voterID string, vote decision.Vote) (decision.Decision, error) {
	now := time.Now().UTC()
	var d decision.Decision
	// created_at is only written on insert so listings keep the original
	// recording order across re-votes.
	err := t.tx.GetContext(ctx, &d, `
		INSERT INTO decisions (id, request_id, voter_id, vote, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (request_id, voter_id)
		DO UPDATE SET vote = EXCLUDED.vote, updated_at = EXCLUDED.updated_at
		RETURNING id, request_id, voter_id, vote, created_at, updated_at
	`, uuid.NewString(), requestID, voterID, vote, now)
	if err != nil {
		return decision.Decision{}, translateErr("upsert decision", err)
	}
	return d, nil
}

func (t *pgTx) ListDecisions(ctx context.Context, requestID string) ([]decision.Decision, error) {
	var decs []decision.Decision
	err := t.tx.SelectContext(ctx, &decs, `
		SELECT id, request_id, voter_id, vote, created_at, updated_at
		FROM decisions
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, translateErr("list decisions", err)
	}
	return decs, nil
}

func (t *pgTx) CountActiveBoardMembers(ctx context.Context) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
		SELECT COUNT(id) FROM users WHERE role = $1
	`, user.RoleBoardMember)
	if err != nil {
		return 0, translateErr("count board members", err)
	}
	return count, nil
}

func (t *pgTx) ListAdminAndBoardMemberIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := t.tx.SelectContext(ctx, &ids, `
		SELECT id FROM users WHERE role IN ($1, $2) ORDER BY created_at
	`, user.RoleAdmin, user.RoleBoardMember)
	if err != nil {
		return nil, translateErr("list admin and board member ids", err)
	}
	return ids, nil
}

func (t *pgTx) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, n.ID, n.UserID, n.Message, n.Link, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, translateErr("create notification", err)
	}
	return n, nil
}

// RequestStore --------------------------------------------------------------

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	var req request.Request
	err := s.db.GetContext(ctx, &req, `
		SELECT `+requestColumns+` FROM requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, apperrors.NotFound("request", id)
	}
	if err != nil {
		return request.Request{}, translateErr("get request", err)
	}
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]request.Request, error) {
	var reqs []request.Request
	err := s.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, translateErr("list requests", err)
	}
	return reqs, nil
}

func (s *Store) ListRequestsByOwner(ctx context.Context, ownerID string) ([]request.Request, error) {
	var reqs []request.Request
	err := s.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM requests WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, translateErr("list requests by owner", err)
	}
	return reqs, nil
}

func (s *Store) CountRequestsByStatus(ctx context.Context, ownerID string) (map[request.Status]int, error) {
	query := `SELECT status, COUNT(id) AS count FROM requests GROUP BY status`
	args := []interface{}{}
	if ownerID != "" {
		query = `SELECT status, COUNT(id) AS count FROM requests WHERE owner_id = $1 GROUP BY status`
		args = append(args, ownerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateErr("count requests by status", err)
	}
	defer rows.Close()

	counts := make(map[request.Status]int)
	for rows.Next() {
		var (
			status request.Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, translateErr("count requests by status", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("count requests by status", err)
	}
	return counts, nil
}

// DecisionStore -------------------------------------------------------------

func (s *Store) ListDecisions(ctx context.Context, requestID string) ([]decision.Decision, error) {
	var decs []decision.Decision
	err := s.db.SelectContext(ctx, &decs, `
		SELECT id, request_id, voter_id, vote, created_at, updated_at
		FROM decisions
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, translateErr("list decisions", err)
	}
	return decs, nil
}

// NotificationStore ---------------------------------------------------------

const notificationColumns = `id, user_id, message, link, read, delivered_at, created_at`

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	err := s.db.GetContext(ctx, &n, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Notification{}, apperrors.NotFound("notification", id)
	}
	if err != nil {
		return notification.Notification{}, translateErr("get notification", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	var notes []notification.Notification
	err := s.db.SelectContext(ctx, &notes, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, translateErr("list notifications", err)
	}
	return notes, nil
}

func (s *Store) ListUndeliveredNotifications(ctx context.Context) ([]notification.Notification, error) {
	var notes []notification.Notification
	err := s.db.SelectContext(ctx, &notes, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE delivered_at IS NULL
		ORDER BY created_at
	`)
	if err != nil {
		return nil, translateErr("list undelivered notifications", err)
	}
	return notes, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	err := s.db.GetContext(ctx, &n, `
		UPDATE notifications
		SET read = TRUE, delivered_at = COALESCE(delivered_at, $2)
		WHERE id = $1
		RETURNING `+notificationColumns+`
	`, id, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Notification{}, apperrors.NotFound("notification", id)
	}
	if err != nil {
		return notification.Notification{}, translateErr("mark notification read", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationDelivered(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET delivered_at = COALESCE(delivered_at, $2)
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return translateErr("mark notification delivered", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}

// UserStore -----------------------------------------------------------------

const userColumns = `id, name, email, password_hash, role, created_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return user.User{}, translateErr("create user", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = LOWER($3), role = $4
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.Role)
	if err != nil {
		return user.User{}, translateErr("update user", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, apperrors.NotFound("user", u.ID)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, apperrors.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, translateErr("get user", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE email = LOWER($1)
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, apperrors.NotFound("user", email)
	}
	if err != nil {
		return user.User{}, translateErr("get user by email", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, translateErr("list users", err)
	}
	return users, nil
}

func (s *Store) CountActiveBoardMembers(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(id) FROM users WHERE role = $1
	`, user.RoleBoardMember)
	if err != nil {
		return 0, translateErr("count board members", err)
	}
	return count, nil
}

// translateErr maps driver errors onto the service taxonomy. Unique
// violations and lock/serialisation failures become Conflict; everything else
// is an internal storage failure.
func translateErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return apperrors.Conflict(op+": duplicate record", err)
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return apperrors.Conflict(op+": transaction conflict", err)
		}
	}
	return apperrors.Internal(op, err)
}
