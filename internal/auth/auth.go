// Package auth issues and verifies session tokens and manages user accounts.
package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kgm-ocak/ocak-map/internal/model"
	"github.com/kgm-ocak/ocak-map/internal/store"
)

const issuer = "ocak-map"

var (
	// ErrUnauthorized means no valid identity accompanied the request.
	ErrUnauthorized = eris.New("authentication required")

	// ErrForbidden means the identity lacks the admin role.
	ErrForbidden = eris.New("admin role required")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = eris.New("invalid email or password")

	// ErrNotApproved is returned when the account exists but is awaiting approval.
	ErrNotApproved = eris.New("account is awaiting approval")
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates users against the store.
type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates an auth service signing HS256 tokens with secret.
func NewService(st store.Store, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the password and returns a signed token for an approved user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "auth: load user")
	}
	if u.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !u.Approved {
		return "", nil, ErrNotApproved
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}

	at := s.now()
	if err := s.store.TouchLastSignedIn(ctx, u.ID, at); err != nil {
		zap.L().Warn("auth: record sign-in failed",
			zap.String("component", "auth"),
			zap.Int64("user_id", u.ID),
			zap.Error(err),
		)
	} else {
		u.LastSignedIn = &at
	}

	zap.L().Info("auth: signed in",
		zap.String("component", "auth"),
		zap.Int64("user_id", u.ID),
	)
	return token, u, nil
}

// IssueToken signs a token for u.
func (s *Service) IssueToken(u *model.User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return token, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, eris.Wrapf(ErrUnauthorized, "auth: %s", err.Error())
	}
	return &claims, nil
}

// Resolve maps a bearer token to the current user record. A deleted or
// unapproved account no longer resolves even while its token is unexpired.
func (s *Service) Resolve(ctx context.Context, raw string) (*model.User, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, eris.Wrap(ErrUnauthorized, "auth: bad subject")
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrUnauthorized, "auth: user %d no longer exists", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth: load user")
	}
	if !u.Approved {
		return nil, eris.Wrapf(ErrUnauthorized, "auth: user %d not approved", id)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
