package customer

import (
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
)

// Customer is the billing profile of a principal. It is created the first
// time the principal subscribes.
type Customer struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`
	Email  string `db:"email" json:"email"`

	CompanyName string `db:"company_name" json:"company_name"`
	TaxID       string `db:"tax_id" json:"tax_id"`

	AddressLine1 string `db:"address_line1" json:"address_line1"`
	AddressLine2 string `db:"address_line2" json:"address_line2"`
	City         string `db:"city" json:"city"`
	State        string `db:"state" json:"state"`
	PostalCode   string `db:"postal_code" json:"postal_code"`
	Country      string `db:"country" json:"country"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c *Customer) Validate() error {
	if c.UserID == "" {
		return ierr.NewError("customer user_id is required").
			WithHint("Customer must belong to a user").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DisplayName is used on invoices and emails
func (c *Customer) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.Email
}
