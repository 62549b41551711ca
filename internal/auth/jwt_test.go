package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Auth.Issuer = "identity"
	s := NewService(cfg)

	token, err := s.IssueToken(&types.Principal{UserID: "u_1", Email: "a@example.com", Role: types.RoleUser}, time.Hour)
	require.NoError(t, err)

	principal, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u_1", principal.UserID)
	assert.Equal(t, "a@example.com", principal.Email)
	assert.Equal(t, types.RoleUser, principal.Role)
}

func TestValidateRejects(t *testing.T) {
	cfg := config.GetDefaultConfig()
	s := NewService(cfg)

	expired, err := s.IssueToken(&types.Principal{UserID: "u_1", Role: types.RoleUser}, -time.Minute)
	require.NoError(t, err)
	_, err = s.ValidateToken(expired)
	assert.True(t, ierr.IsPermissionDenied(err))

	other := config.GetDefaultConfig()
	other.Auth.Secret = "another-secret"
	foreign, err := NewService(other).IssueToken(&types.Principal{UserID: "u_1", Role: types.RoleUser}, time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateToken(foreign)
	assert.True(t, ierr.IsPermissionDenied(err))

	badRole, err := NewService(cfg).IssueToken(&types.Principal{UserID: "u_1", Role: "ROOT"}, time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateToken(badRole)
	assert.True(t, ierr.IsPermissionDenied(err))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u_1", "role": "OWNER"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ValidateToken(unsigned)
	assert.True(t, ierr.IsPermissionDenied(err))
}
