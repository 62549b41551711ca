package dto

import (
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/validator"
)

// UpdateCustomerRequest edits the billing details printed on invoices
type UpdateCustomerRequest struct {
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	CompanyName  *string `json:"company_name,omitempty"`
	TaxID        *string `json:"tax_id,omitempty"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      *string `json:"country,omitempty" validate:"omitempty,len=2"`
}

func (r *UpdateCustomerRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *UpdateCustomerRequest) Apply(c *customer.Customer) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Email, r.Email)
	set(&c.CompanyName, r.CompanyName)
	set(&c.TaxID, r.TaxID)
	set(&c.AddressLine1, r.AddressLine1)
	set(&c.AddressLine2, r.AddressLine2)
	set(&c.City, r.City)
	set(&c.State, r.State)
	set(&c.PostalCode, r.PostalCode)
	set(&c.Country, r.Country)
}

type CustomerResponse struct {
	*customer.Customer
}
