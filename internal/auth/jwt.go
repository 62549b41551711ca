package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
)

// Claims carried by access tokens. Tokens are issued by the identity
// service; this service only verifies them.
type Claims struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service verifies HS256 access tokens
type Service struct {
	secret []byte
	issuer string
}

func NewService(cfg *config.Configuration) *Service {
	return &Service{
		secret: []byte(cfg.Auth.Secret),
		issuer: cfg.Auth.Issuer,
	}
}

// ValidateToken parses token and returns the principal it names
func (s *Service) ValidateToken(token string) (*types.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid or expired token").
			Mark(ierr.ErrPermissionDenied)
	}
	if !parsed.Valid {
		return nil, ierr.NewError("invalid token").
			WithHint("Invalid or expired token").
			Mark(ierr.ErrPermissionDenied)
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return nil, ierr.NewError("unexpected token issuer").
			WithHint("Invalid or expired token").
			Mark(ierr.ErrPermissionDenied)
	}
	if claims.UserID == "" {
		return nil, ierr.NewError("token missing user id").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}
	if err := claims.Role.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	return &types.Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// IssueToken signs a token for principal, used by local tooling and tests
func (s *Service) IssueToken(principal *types.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: principal.UserID,
		Email:  principal.Email,
		Role:   principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}
