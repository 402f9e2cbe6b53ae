package storage

import (
	"context"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/domain/user"
)

// RequestStore exposes non-transactional request reads.
type RequestStore interface {
	GetRequest(ctx context.Context, id string) (request.Request, error)
	ListRequests(ctx context.Context) ([]request.Request, error)
	ListRequestsByOwner(ctx context.Context, ownerID string) ([]request.Request, error)
	// CountRequestsByStatus returns per-status counts, scoped to an owner when
	// ownerID is non-empty.
	CountRequestsByStatus(ctx context.Context, ownerID string) (map[request.Status]int, error)
}

// DecisionStore exposes recorded decisions. Listings are ordered by original
// recording time, oldest first.
type DecisionStore interface {
	ListDecisions(ctx context.Context, requestID string) ([]decision.Decision, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	ListUndeliveredNotifications(ctx context.Context) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error)
	MarkNotificationDelivered(ctx context.Context, id string) error
}

// UserStore persists user accounts and answers role queries.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	CountActiveBoardMembers(ctx context.Context) (int, error)
}

// Tx is the unit-of-work view the workflow engine operates on. Every method
// sees and mutates uncommitted transaction state; nothing becomes visible to
// other callers until the enclosing WithinTx commits.
type Tx interface {
	// GetRequestForUpdate reads a request and holds an exclusive lock on it
	// for the remainder of the transaction, serialising concurrent
	// read-aggregate-write sequences on the same request.
	GetRequestForUpdate(ctx context.Context, id string) (request.Request, error)
	InsertRequest(ctx context.Context, req request.Request) (request.Request, error)
	UpdateRequest(ctx context.Context, req request.Request) (request.Request, error)
	SetRequestStatus(ctx context.Context, id string, status request.Status) error

	// UpsertDecision inserts or replaces the (request, voter) decision
	// atomically, preserving the original recording time on replace.
	UpsertDecision(ctx context.Context, requestID, voterID string, vote decision.Vote) (decision.Decision, error)
	ListDecisions(ctx context.Context, requestID string) ([]decision.Decision, error)

	CountActiveBoardMembers(ctx context.Context) (int, error)
	ListAdminAndBoardMemberIDs(ctx context.Context) ([]string, error)

	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
}

// TxRunner wraps a function in one transaction: commit on nil, roll back on
// error. A rolled-back transaction leaves no observable state change.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
