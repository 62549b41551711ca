package types

import (
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/samber/lo"
)

// Role is the coarse grained role carried by an authenticated principal
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleAdmin      Role = "ADMIN"
	RoleAccountant Role = "ACCOUNTANT"
	RoleUser       Role = "USER"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Validate() error {
	allowed := []Role{RoleOwner, RoleAdmin, RoleAccountant, RoleUser}
	if !lo.Contains(allowed, r) {
		return ierr.NewError("invalid role").
			WithHint("Please provide a valid role").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Principal is the authenticated caller as seen by the billing engine.
// Identity management itself lives outside this service.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the principal acts on behalf of the organisation
// rather than as a customer.
func (p *Principal) IsStaff() bool {
	if p == nil {
		return false
	}
	return p.Role == RoleOwner || p.Role == RoleAdmin || p.Role == RoleAccountant
}

// GetUserID returns the user id, empty for a nil principal
func (p *Principal) GetUserID() string {
	if p == nil {
		return ""
	}
	return p.UserID
}
