package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sensor_gateway/internal/models"
	"sensor_gateway/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = time.Hour

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrBootIDMismatch  = errors.New("boot id does not match the running gateway")
	ErrOperatorExists  = errors.New("operator already enrolled")
)

// Principal is the authenticated caller behind a token.
type Principal struct {
	UserID int
	Role   models.Role
}

// AuthService guards the status API with bcrypt credentials and HS256
// tokens that carry the caller's role.
//
// The gateway has a single operator. It is enrolled by whoever can read the
// boot ID the gateway logs at startup, which requires console or journal
// access to the device. The operator then adds viewers.
type AuthService struct {
	users      repository.Users
	signingKey []byte
	bootID     string

	enrollMu sync.Mutex
}

func NewAuthService(users repository.Users, signingKey, bootID string) *AuthService {
	return &AuthService{users: users, signingKey: []byte(signingKey), bootID: bootID}
}

// EnrollOperator creates the operator account. It fails with
// ErrBootIDMismatch unless bootID is the running gateway's, and with
// ErrOperatorExists once an operator has been enrolled.
func (s *AuthService) EnrollOperator(ctx context.Context, username, password, bootID string) (int, error) {
	if s.bootID == "" || subtle.ConstantTimeCompare([]byte(bootID), []byte(s.bootID)) != 1 {
		return 0, ErrBootIDMismatch
	}

	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	n, err := s.users.CountByRole(ctx, models.RoleOperator)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, ErrOperatorExists
	}
	return s.create(ctx, username, password, models.RoleOperator)
}

// AddViewer creates a read-only account.
func (s *AuthService) AddViewer(ctx context.Context, username, password string) (int, error) {
	return s.create(ctx, username, password, models.RoleViewer)
}

func (s *AuthService) create(ctx context.Context, username, password string, role models.Role) (int, error) {
	if strings.TrimSpace(username) == "" {
		return 0, errors.New("username is empty")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("invalid password: %w", err)
	}
	return s.users.Create(ctx, models.User{Username: username, Role: role, PasswordHash: hash})
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int         `json:"user_id"`
	Role   models.Role `json:"role"`
}

// GenerateToken validates credentials and returns a JWT carrying the
// account's role.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}

	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	return s.issueToken(u.ID, u.Role)
}

// ParseToken verifies the JWT and returns its principal. Tokens without a
// known role are rejected.
func (s *AuthService) ParseToken(accessToken string) (Principal, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return Principal{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return Principal{}, ErrInvalidToken
	}

	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken(userID int, role models.Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
		Role:   role,
	})
	return token.SignedString(s.signingKey)
}
