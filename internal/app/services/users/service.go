// Package users manages accounts, credentials, and role assignment.
package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/app/storage"
	"github.com/swiftel/request-handler/internal/auth"
	apperrors "github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/pkg/logger"
)

const (
	minNameLength     = 3
	minPasswordLength = 6
)

// Service manages user records.
type Service struct {
	store  storage.UserStore
	issuer *auth.Issuer
	log    *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, issuer *auth.Issuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, issuer: issuer, log: log}
}

// Register creates a new account with the default employee role.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if len(name) < minNameLength {
		return user.User{}, apperrors.BadRequest(fmt.Sprintf("name must be at least %d characters", minNameLength))
	}
	if !strings.Contains(email, "@") {
		return user.User{}, apperrors.BadRequest("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return user.User{}, apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, apperrors.Internal("hash password", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         user.RoleEmployee,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	created.PasswordHash = ""
	return created, nil
}

// Login verifies credentials and returns a signed session token alongside the
// user. Unknown emails and wrong passwords are indistinguishable to callers.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (string, user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return "", user.User{}, apperrors.Unauthorized("invalid credentials")
		}
		return "", user.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", user.User{}, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.issuer.Issue(u, remember)
	if err != nil {
		return "", user.User{}, err
	}

	u.PasswordHash = ""
	return token, u, nil
}

// Get returns a single user without credentials.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// List returns all users without credentials.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// UpdateByAdmin edits a user's name, email, and role. Admin accounts are
// immutable through this path, and the admin role cannot be granted.
func (s *Service) UpdateByAdmin(ctx context.Context, userID, name, email string, role user.Role) (user.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return user.User{}, apperrors.BadRequest("name and email are required")
	}
	if !assignable(role) {
		return user.User{}, apperrors.BadRequest(fmt.Sprintf("invalid role %q", role))
	}

	target, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if target.Role == user.RoleAdmin {
		return user.User{}, apperrors.Unauthorized("cannot modify an admin account")
	}

	target.Name = name
	target.Email = email
	target.Role = role

	updated, err := s.store.UpdateUser(ctx, target)
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", userID).WithField("role", role).Info("user updated by admin")
	updated.PasswordHash = ""
	return updated, nil
}

// Roles lists the roles an admin may assign.
func (s *Service) Roles() []user.Role {
	return user.AssignableRoles()
}

func assignable(role user.Role) bool {
	for _, r := range user.AssignableRoles() {
		if r == role {
			return true
		}
	}
	return false
}
