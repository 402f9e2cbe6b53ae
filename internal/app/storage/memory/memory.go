// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/app/storage"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

// Store keeps all state in maps guarded by one mutex. Transactions take the
// write lock for their whole duration, which gives the same serialisation the
// Postgres store gets from row locks, and roll back by restoring a snapshot.
type Store struct {
	mu sync.RWMutex

	users        map[string]user.User
	emailIndex   map[string]string // lowercased email -> user id
	requests     map[string]request.Request
	requestOrder []string
	decisions    map[string][]decision.Decision // request id -> recording order
	notes        map[string]notification.Notification
	noteOrder    []string
}

var _ storage.RequestStore = (*Store)(nil)
var _ storage.DecisionStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TxRunner = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[string]user.User),
		emailIndex: make(map[string]string),
		requests:   make(map[string]request.Request),
		decisions:  make(map[string][]decision.Decision),
		notes:      make(map[string]notification.Notification),
	}
}

// WithinTx runs fn under the store lock. When fn returns an error or panics,
// the pre-transaction snapshot is restored so no partial state survives.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	defer func() {
		if r := recover(); r != nil {
			s.restoreLocked(snap)
			panic(r)
		}
	}()

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users        map[string]user.User
	emailIndex   map[string]string
	requests     map[string]request.Request
	requestOrder []string
	decisions    map[string][]decision.Decision
	notes        map[string]notification.Notification
	noteOrder    []string
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		users:        make(map[string]user.User, len(s.users)),
		emailIndex:   make(map[string]string, len(s.emailIndex)),
		requests:     make(map[string]request.Request, len(s.requests)),
		requestOrder: append([]string(nil), s.requestOrder...),
		decisions:    make(map[string][]decision.Decision, len(s.decisions)),
		notes:        make(map[string]notification.Notification, len(s.notes)),
		noteOrder:    append([]string(nil), s.noteOrder...),
	}
	for id, u := range s.users {
		snap.users[id] = u
	}
	for email, id := range s.emailIndex {
		snap.emailIndex[email] = id
	}
	for id, req := range s.requests {
		snap.requests[id] = cloneRequest(req)
	}
	for id, decs := range s.decisions {
		snap.decisions[id] = append([]decision.Decision(nil), decs...)
	}
	for id, n := range s.notes {
		snap.notes[id] = cloneNotification(n)
	}
	return snap
}

func (s *Store) restoreLocked(snap snapshot) {
	s.users = snap.users
	s.emailIndex = snap.emailIndex
	s.requests = snap.requests
	s.requestOrder = snap.requestOrder
	s.decisions = snap.decisions
	s.notes = snap.notes
	s.noteOrder = snap.noteOrder
}

// memTx operates on the already-locked store.
type memTx struct {
	s *Store
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) GetRequestForUpdate(_ context.Context, id string) (request.Request, error) {
	return t.s.getRequestLocked(id)
}

func (t *memTx) InsertRequest(_ context.Context, req request.Request) (request.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = request.StatusPending
	}
	t.s.requests[req.ID] = cloneRequest(req)
	t.s.requestOrder = append(t.s.requestOrder, req.ID)
	return req, nil
}

func (t *memTx) UpdateRequest(_ context.Context, req request.Request) (request.Request, error) {
	existing, err := t.s.getRequestLocked(req.ID)
	if err != nil {
		return request.Request{}, err
	}
	req.OwnerID = existing.OwnerID
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()
	t.s.requests[req.ID] = cloneRequest(req)
	return req, nil
}

func (t *memTx) SetRequestStatus(_ context.Context, id string, status request.Status) error {
	req, err := t.s.getRequestLocked(id)
	if err != nil {
		return err
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	t.s.requests[id] = req
	return nil
}

func (t *memTx) UpsertDecision(_ context.Context, requestID, voterID string, vote decision.Vote) (decision.Decision, error) {
	now := time.Now().UTC()
	decs := t.s.decisions[requestID]
	for i, d := range decs {
		if d.VoterID == voterID {
			decs[i].Vote = vote
			decs[i].UpdatedAt = now
			return decs[i], nil
		}
	}
	d := decision.Decision{
		ID:        uuid.NewString(),
		RequestID: requestID,
		VoterID:   voterID,
		Vote:      vote,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.s.decisions[requestID] = append(decs, d)
	return d, nil
}

func (t *memTx) ListDecisions(_ context.Context, requestID string) ([]decision.Decision, error) {
	return append([]decision.Decision(nil), t.s.decisions[requestID]...), nil
}

func (t *memTx) CountActiveBoardMembers(_ context.Context) (int, error) {
	return t.s.countBoardMembersLocked(), nil
}

func (t *memTx) ListAdminAndBoardMemberIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, id := range t.s.userIDsLocked() {
		u := t.s.users[id]
		if u.Role == user.RoleAdmin || u.Role == user.RoleBoardMember {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memTx) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	return t.s.createNotificationLocked(n), nil
}

// RequestStore --------------------------------------------------------------

func (s *Store) GetRequest(_ context.Context, id string) (request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequestLocked(id)
}

func (s *Store) ListRequests(_ context.Context) ([]request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsLocked(""), nil
}

func (s *Store) ListRequestsByOwner(_ context.Context, ownerID string) ([]request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsLocked(ownerID), nil
}

func (s *Store) CountRequestsByStatus(_ context.Context, ownerID string) (map[request.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[request.Status]int)
	for _, req := range s.requests {
		if ownerID != "" && req.OwnerID != ownerID {
			continue
		}
		counts[req.Status]++
	}
	return counts, nil
}

// listRequestsLocked returns requests newest first.
func (s *Store) listRequestsLocked(ownerID string) []request.Request {
	out := make([]request.Request, 0, len(s.requestOrder))
	for i := len(s.requestOrder) - 1; i >= 0; i-- {
		req := s.requests[s.requestOrder[i]]
		if ownerID != "" && req.OwnerID != ownerID {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	return out
}

func (s *Store) getRequestLocked(id string) (request.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return request.Request{}, apperrors.NotFound("request", id)
	}
	return cloneRequest(req), nil
}

// DecisionStore -------------------------------------------------------------

func (s *Store) ListDecisions(_ context.Context, requestID string) ([]decision.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]decision.Decision(nil), s.decisions[requestID]...), nil
}

// NotificationStore ---------------------------------------------------------

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return notification.Notification{}, apperrors.NotFound("notification", id)
	}
	return cloneNotification(n), nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notification.Notification
	for i := len(s.noteOrder) - 1; i >= 0; i-- {
		n := s.notes[s.noteOrder[i]]
		if n.UserID == userID {
			out = append(out, cloneNotification(n))
		}
	}
	return out, nil
}

func (s *Store) ListUndeliveredNotifications(_ context.Context) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notification.Notification
	for _, id := range s.noteOrder {
		n := s.notes[id]
		if n.DeliveredAt == nil {
			out = append(out, cloneNotification(n))
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return notification.Notification{}, apperrors.NotFound("notification", id)
	}
	n.Read = true
	if n.DeliveredAt == nil {
		now := time.Now().UTC()
		n.DeliveredAt = &now
	}
	s.notes[id] = n
	return cloneNotification(n), nil
}

func (s *Store) MarkNotificationDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return apperrors.NotFound("notification", id)
	}
	if n.DeliveredAt == nil {
		now := time.Now().UTC()
		n.DeliveredAt = &now
		s.notes[id] = n
	}
	return nil
}

func (s *Store) createNotificationLocked(n notification.Notification) notification.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	s.notes[n.ID] = cloneNotification(n)
	s.noteOrder = append(s.noteOrder, n.ID)
	return n
}

// UserStore -----------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, exists := s.emailIndex[normalizeEmail(u.Email)]; exists {
		return user.User{}, apperrors.Conflict("email already registered", nil)
	}
	for _, existing := range s.users {
		if existing.Name == u.Name {
			return user.User{}, apperrors.Conflict("name already registered", nil)
		}
	}
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = u
	s.emailIndex[normalizeEmail(u.Email)] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, apperrors.NotFound("user", u.ID)
	}
	if id, taken := s.emailIndex[normalizeEmail(u.Email)]; taken && id != u.ID {
		return user.User{}, apperrors.Conflict("email already registered", nil)
	}
	if u.PasswordHash == "" {
		u.PasswordHash = existing.PasswordHash
	}
	u.CreatedAt = existing.CreatedAt
	delete(s.emailIndex, normalizeEmail(existing.Email))
	s.emailIndex[normalizeEmail(u.Email)] = u.ID
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperrors.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[normalizeEmail(email)]
	if !ok {
		return user.User{}, apperrors.NotFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user.User, 0, len(s.users))
	for _, id := range s.userIDsLocked() {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *Store) CountActiveBoardMembers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countBoardMembersLocked(), nil
}

func (s *Store) countBoardMembersLocked() int {
	count := 0
	for _, u := range s.users {
		if u.Role == user.RoleBoardMember {
			count++
		}
	}
	return count
}

// userIDsLocked returns user ids ordered by creation time so listings are
// deterministic.
func (s *Store) userIDsLocked() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.users[ids[i]], s.users[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ids
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneRequest(req request.Request) request.Request {
	if req.Amount != nil {
		amount := *req.Amount
		req.Amount = &amount
	}
	return req
}

func cloneNotification(n notification.Notification) notification.Notification {
	if n.DeliveredAt != nil {
		at := *n.DeliveredAt
		n.DeliveredAt = &at
	}
	return n
}
