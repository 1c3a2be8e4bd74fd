package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kgm-ocak/ocak-map/internal/model"
	"github.com/kgm-ocak/ocak-map/internal/store"
)

// ErrInvalidUser is returned when an account request fails validation.
var ErrInvalidUser = eris.New("invalid user")

// NewUser is an admin request to create an account.
type NewUser struct {
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// ListUsers returns every account in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "auth: list users")
	}
	return users, nil
}

// PendingUsers returns accounts awaiting approval.
func (s *Service) PendingUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListPendingUsers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "auth: list pending users")
	}
	return users, nil
}

// CreateUser stores an approved account with a bcrypt-hashed password.
// A duplicate email surfaces as store.ErrConflict.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidUser, "auth: email %q", in.Email)
	}
	if in.Password == "" {
		return nil, eris.Wrap(ErrInvalidUser, "auth: password is required")
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, eris.Wrapf(ErrInvalidUser, "auth: role %q", role)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.store.CreateUser(ctx, model.User{
		Email:        normalizeEmail(addr.Address),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		Approved:     true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "auth: create user")
	}
	zap.L().Info("auth: user created",
		zap.String("component", "auth.admin"),
		zap.Int64("user_id", u.ID),
		zap.String("role", string(u.Role)),
	)
	return u, nil
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash password")
	}
	return string(hash), nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	if !role.Valid() {
		return eris.Wrapf(ErrInvalidUser, "auth: role %q", role)
	}
	if err := s.store.UpdateUserRole(ctx, id, role); err != nil {
		return eris.Wrap(err, "auth: update role")
	}
	return nil
}

// Approve lets a pending user sign in.
func (s *Service) Approve(ctx context.Context, id int64) error {
	if err := s.store.ApproveUser(ctx, id); err != nil {
		return eris.Wrap(err, "auth: approve user")
	}
	return nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *model.User, id int64) error {
	if actor != nil && actor.ID == id {
		return eris.Wrap(ErrInvalidUser, "auth: cannot delete own account")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return eris.Wrap(err, "auth: delete user")
	}
	return nil
}

// EnsureAdmin creates an approved admin with the given credentials, or
// promotes and approves the existing account with that email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*model.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.CreateUser(ctx, NewUser{Email: email, Name: "Admin", Password: password, Role: model.RoleAdmin})
	case err != nil:
		return nil, eris.Wrap(err, "auth: load admin")
	}

	if err := s.store.UpdateUserRole(ctx, existing.ID, model.RoleAdmin); err != nil {
		return nil, eris.Wrap(err, "auth: promote admin")
	}
	if !existing.Approved {
		if err := s.store.ApproveUser(ctx, existing.ID); err != nil {
			return nil, eris.Wrap(err, "auth: approve admin")
		}
	}
	existing.Role, existing.Approved = model.RoleAdmin, true
	return existing, nil
}
