// Package workflow implements the request approval engine: it records board
// member decisions, aggregates them into a request status, and notifies the
// affected users, all inside one storage transaction per operation.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/metrics"
	"github.com/swiftel/request-handler/internal/app/storage"
	apperrors "github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/pkg/logger"
)

// Dispatcher delivers a committed notification over a live channel. Dispatch
// runs after the transaction that created the notification has committed; the
// stored row is the durable record, so delivery failures are tolerable.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notification.Notification)
}

// Service orchestrates decision submission, aggregation, status transitions,
// and notifications.
type Service struct {
	tx         storage.TxRunner
	requests   storage.RequestStore
	decisions  storage.DecisionStore
	users      storage.UserStore
	dispatcher Dispatcher
	log        *logger.Logger
}

// New constructs the workflow engine.
func New(tx storage.TxRunner, requests storage.RequestStore, decisions storage.DecisionStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("workflow")
	}
	return &Service{tx: tx, requests: requests, decisions: decisions, users: users, log: log}
}

// AttachDispatcher wires post-commit live delivery. Optional; without it
// notifications are only persisted.
func (s *Service) AttachDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// SubmitDecision records voterID's vote on a request and reconciles the
// request status with the resolved aggregate. The decision upsert, the status
// read and write, and the owner notification all commit or roll back as one
// unit. Errors propagate verbatim; the engine never retries.
//
// A non-override submission fails once the request has left the pending
// state. An override (an admin acting for or over a board member) bypasses
// that guard and may re-open a finalized request.
func (s *Service) SubmitDecision(ctx context.Context, requestID, voterID string, vote decision.Vote, override bool) (request.Request, error) {
	if !vote.Valid() {
		return request.Request{}, apperrors.BadRequest(fmt.Sprintf("unknown vote %q", vote))
	}
	if strings.TrimSpace(voterID) == "" {
		return request.Request{}, apperrors.BadRequest("voter id is required")
	}

	var (
		updated request.Request
		queued  []notification.Notification
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		if !override && req.Status != request.StatusPending {
			return apperrors.RequestFinalized(requestID)
		}

		if _, err := tx.UpsertDecision(ctx, requestID, voterID, vote); err != nil {
			return err
		}

		resolved, err := s.resolveLocked(ctx, tx, req)
		if err != nil {
			return err
		}

		if resolved != req.Status {
			if err := tx.SetRequestStatus(ctx, req.ID, resolved); err != nil {
				return err
			}
			n, err := tx.CreateNotification(ctx, notification.Notification{
				UserID:  req.OwnerID,
				Message: transitionMessage(req.Title, resolved),
				Link:    "/requests/" + req.ID,
			})
			if err != nil {
				return err
			}
			queued = append(queued, n)
		}

		req.Status = resolved
		updated = req
		return nil
	})
	if err != nil {
		return request.Request{}, err
	}

	metrics.DecisionSubmitted(string(vote), override)
	if len(queued) > 0 {
		metrics.StatusTransition(string(updated.Status))
	}
	s.log.WithField("request_id", requestID).
		WithField("voter_id", voterID).
		WithField("status", updated.Status).
		WithField("override", override).
		Info("decision recorded")

	s.dispatch(ctx, queued)
	return updated, nil
}

// CreateRequestInput carries the fields a requester supplies.
type CreateRequestInput struct {
	OwnerID     string
	Title       string
	Description string
	Kind        request.Kind
	Amount      *float64
}

// CreateRequest inserts a new pending request and notifies every admin and
// board member, atomically: if any notification insert fails nothing commits.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (request.Request, error) {
	if err := validateRequestFields(input.Title, input.Description, input.Kind, input.Amount); err != nil {
		return request.Request{}, err
	}
	if strings.TrimSpace(input.OwnerID) == "" {
		return request.Request{}, apperrors.BadRequest("owner id is required")
	}
	if input.Kind != request.KindMonetary {
		input.Amount = nil
	}

	owner, err := s.users.GetUser(ctx, input.OwnerID)
	if err != nil {
		return request.Request{}, err
	}

	var (
		created request.Request
		queued  []notification.Notification
	)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		req, err := tx.InsertRequest(ctx, request.Request{
			OwnerID:     input.OwnerID,
			Title:       strings.TrimSpace(input.Title),
			Description: strings.TrimSpace(input.Description),
			Kind:        input.Kind,
			Amount:      input.Amount,
			Status:      request.StatusPending,
		})
		if err != nil {
			return err
		}

		reviewers, err := tx.ListAdminAndBoardMemberIDs(ctx)
		if err != nil {
			return apperrors.Internal("list reviewers", err)
		}
		for _, reviewerID := range reviewers {
			n, err := tx.CreateNotification(ctx, notification.Notification{
				UserID:  reviewerID,
				Message: fmt.Sprintf("New request %q from %s is awaiting review.", req.Title, owner.Name),
				Link:    "/requests/" + req.ID,
			})
			if err != nil {
				return err
			}
			queued = append(queued, n)
		}

		created = req
		return nil
	})
	if err != nil {
		return request.Request{}, err
	}

	s.log.WithField("request_id", created.ID).
		WithField("owner_id", created.OwnerID).
		WithField("kind", created.Kind).
		Info("request created")

	s.dispatch(ctx, queued)
	return created, nil
}

// UpdateRequestInput carries the editable fields of a pending request.
type UpdateRequestInput struct {
	Title       string
	Description string
	Kind        request.Kind
	Amount      *float64
}

// UpdateRequest lets the owner edit a request that is still pending. The
// pending check and the write share one transaction so a concurrent
// finalization cannot slip in between.
func (s *Service) UpdateRequest(ctx context.Context, requestID, actorID string, input UpdateRequestInput) (request.Request, error) {
	if err := validateRequestFields(input.Title, input.Description, input.Kind, input.Amount); err != nil {
		return request.Request{}, err
	}
	if input.Kind != request.KindMonetary {
		input.Amount = nil
	}

	var updated request.Request
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != actorID {
			return apperrors.Unauthorized("only the request owner may edit it")
		}
		if req.Status != request.StatusPending {
			return apperrors.RequestFinalized(requestID)
		}

		req.Title = strings.TrimSpace(input.Title)
		req.Description = strings.TrimSpace(input.Description)
		req.Kind = input.Kind
		req.Amount = input.Amount

		updated, err = tx.UpdateRequest(ctx, req)
		return err
	})
	if err != nil {
		return request.Request{}, err
	}
	return updated, nil
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id string) (request.Request, error) {
	return s.requests.GetRequest(ctx, id)
}

// List returns all requests, newest first.
func (s *Service) List(ctx context.Context) ([]request.Request, error) {
	return s.requests.ListRequests(ctx)
}

// ListByOwner returns the requests created by ownerID, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]request.Request, error) {
	return s.requests.ListRequestsByOwner(ctx, ownerID)
}

// ListDecisions returns the decisions recorded for a request in original
// recording order.
func (s *Service) ListDecisions(ctx context.Context, requestID string) ([]decision.Decision, error) {
	if _, err := s.requests.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.decisions.ListDecisions(ctx, requestID)
}

// Stats summarises request counts by status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// StatsFor returns per-owner counts, or global counts when ownerID is empty.
func (s *Service) StatsFor(ctx context.Context, ownerID string) (Stats, error) {
	counts, err := s.requests.CountRequestsByStatus(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Pending:  counts[request.StatusPending],
		Approved: counts[request.StatusApproved],
		Rejected: counts[request.StatusRejected],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

// resolveLocked re-aggregates a request from the full decision set and the
// live board size, both read inside the caller's transaction.
func (s *Service) resolveLocked(ctx context.Context, tx storage.Tx, req request.Request) (request.Status, error) {
	decs, err := tx.ListDecisions(ctx, req.ID)
	if err != nil {
		return "", err
	}
	boardSize, err := tx.CountActiveBoardMembers(ctx)
	if err != nil {
		return "", apperrors.Internal("count active board members", err)
	}
	return Resolve(req.Kind, decs, boardSize), nil
}

func (s *Service) dispatch(ctx context.Context, queued []notification.Notification) {
	if s.dispatcher == nil {
		return
	}
	for _, n := range queued {
		s.dispatcher.Dispatch(ctx, n)
	}
}

func validateRequestFields(title, description string, kind request.Kind, amount *float64) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.BadRequest("title is required")
	}
	if strings.TrimSpace(description) == "" {
		return apperrors.BadRequest("description is required")
	}
	if !kind.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("unknown request type %q", kind))
	}
	if kind == request.KindMonetary {
		if amount == nil {
			return apperrors.BadRequest("a valid amount is required for monetary requests")
		}
		if *amount <= 0 {
			return apperrors.BadRequest("amount must be positive")
		}
	}
	return nil
}

func transitionMessage(title string, status request.Status) string {
	if status == request.StatusPending {
		return fmt.Sprintf("Your request %q has been reopened and is pending again.", title)
	}
	return fmt.Sprintf("Your request %q has been %s.", title, status)
}
